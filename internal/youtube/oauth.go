package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

var scopes = []string{"https://www.googleapis.com/auth/youtube.readonly"}

type oauthSettings struct {
	endpoint oauth2.Endpoint
}

func defaultOAuthSettings() oauthSettings {
	return oauthSettings{endpoint: google.Endpoint}
}

// WithOAuthEndpoint overrides the Google OAuth endpoints (useful for testing).
func WithOAuthEndpoint(endpoint oauth2.Endpoint) ClientOption {
	return func(c *Client) {
		c.oauth.endpoint = endpoint
	}
}

func (c *Client) oauthConfig(app oauth.AppIdentity) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     app.ClientKey,
		ClientSecret: app.ClientSecret,
		Endpoint:     c.oauth.endpoint,
		RedirectURL:  oauth.RedirectURI(app.Origin, oauth.CallbackPath(oauth.PlatformYouTube), false),
		Scopes:       scopes,
	}
}

// AuthorizationURL builds the Google consent URL and returns it with its state.
func (c *Client) AuthorizationURL(app oauth.AppIdentity, opts oauth.AuthOptions) (string, string, error) {
	if app.ClientKey == "" {
		return "", "", fmt.Errorf("%w for youtube: client id is empty", oauth.ErrMissingAppSecret)
	}
	state := opts.StateOrNew()
	return c.oauthConfig(app).AuthCodeURL(state, oauth2.AccessTypeOffline), state, nil
}

// ExchangeCode trades an authorization code for a bearer token. The token is
// stored but never refreshed by this adapter.
func (c *Client) ExchangeCode(ctx context.Context, code string, app oauth.AppIdentity) (*oauth.Credential, error) {
	if err := app.Validate(oauth.PlatformYouTube); err != nil {
		return nil, err
	}
	if hc, ok := c.httpClient.(*http.Client); ok {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}

	tok, err := c.oauthConfig(app).Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			msg := re.ErrorDescription
			if msg == "" {
				msg = string(re.Body)
			}
			return nil, &oauth.APIError{Platform: oauth.PlatformYouTube, Status: status, Code: re.ErrorCode, Message: msg}
		}
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	return &oauth.Credential{
		Platform:     oauth.PlatformYouTube,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresAt:    tok.Expiry,
		ClientKey:    app.ClientKey,
		ClientSecret: app.ClientSecret,
	}, nil
}
