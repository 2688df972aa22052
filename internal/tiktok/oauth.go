package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

var scopes = []string{"user.info.basic", "user.info.stats", "video.list"}

// RedirectURI is the callback registered with the TikTok app. TikTok matches
// it byte for byte and the registered form ends in a slash.
func RedirectURI(origin string) string {
	return oauth.RedirectURI(origin, oauth.CallbackPath(oauth.PlatformTikTok), true)
}

// AuthorizationURL builds the v2 authorize URL and returns it with its state.
// TikTok names the app identifier client_key and separates scopes by commas.
func (c *Client) AuthorizationURL(app oauth.AppIdentity, opts oauth.AuthOptions) (string, string, error) {
	if app.ClientKey == "" {
		return "", "", fmt.Errorf("%w for tiktok: client key is empty", oauth.ErrMissingAppSecret)
	}
	state := opts.StateOrNew()

	params := url.Values{}
	params.Set("client_key", app.ClientKey)
	params.Set("scope", strings.Join(scopes, ","))
	params.Set("response_type", "code")
	params.Set("redirect_uri", RedirectURI(app.Origin))
	params.Set("state", state)

	return c.authBaseURL + "/v2/auth/authorize/?" + params.Encode(), state, nil
}

// ExchangeCode trades an authorization code for tokens. Expiries are
// absolute, stamped from the moment the request was issued.
func (c *Client) ExchangeCode(ctx context.Context, code string, app oauth.AppIdentity) (*oauth.Credential, error) {
	if err := app.Validate(oauth.PlatformTikTok); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("client_key", app.ClientKey)
	form.Set("client_secret", app.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", RedirectURI(app.Origin))

	cred, err := c.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	cred.ClientKey = app.ClientKey
	cred.ClientSecret = app.ClientSecret
	return cred, nil
}

// Refresh redeems the refresh token for a new access token. The argument is
// not modified; the refresh policy copies the result in place.
func (c *Client) Refresh(ctx context.Context, cred *oauth.Credential) (*oauth.Credential, error) {
	if !cred.Refreshable() {
		return nil, fmt.Errorf("%w: credential is missing a refresh token or app identity", oauth.ErrRefreshUnsupported)
	}

	form := url.Values{}
	form.Set("client_key", cred.ClientKey)
	form.Set("client_secret", cred.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)

	refreshed, err := c.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	refreshed.ClientKey = cred.ClientKey
	refreshed.ClientSecret = cred.ClientSecret
	return refreshed, nil
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*oauth.Credential, error) {
	issuedAt := c.now()

	status, body, err := oauth.PostForm(ctx, c.transport, c.apiBaseURL+"/v2/oauth/token/", form)
	if err != nil {
		return nil, err
	}
	if apiErr := ParseError(body); apiErr != nil {
		if e, ok := apiErr.(*oauth.APIError); ok {
			e.Status = status
		}
		return nil, apiErr
	}
	if status != http.StatusOK {
		return nil, c.handleAPIError(status)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, &oauth.APIError{Platform: oauth.PlatformTikTok, Status: status, Message: "no access token received"}
	}

	return &oauth.Credential{
		Platform:         oauth.PlatformTikTok,
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		TokenType:        tok.TokenType,
		ExpiresAt:        oauth.ExpiryFrom(issuedAt, tok.ExpiresIn),
		RefreshExpiresAt: oauth.ExpiryFrom(issuedAt, tok.RefreshExpiresIn),
		OpenID:           tok.OpenID,
		Scope:            tok.Scope,
	}, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
}
