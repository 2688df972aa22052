package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// LongLivedTTL is assumed when the upgrade response omits expires_in.
const LongLivedTTL = 60 * 24 * time.Hour

var scopes = []string{
	"pages_show_list",
	"pages_read_engagement",
	"instagram_basic",
	"instagram_manage_insights",
	"business_management",
}

// RedirectURI is the callback registered with the Meta app. One app serves
// both platforms, so both use the Facebook callback path, without a
// trailing slash.
func RedirectURI(origin string) string {
	return oauth.RedirectURI(origin, oauth.CallbackPath(oauth.PlatformFacebook), false)
}

func (c *Client) oauthConfig(app oauth.AppIdentity) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     app.ClientKey,
		ClientSecret: app.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.dialogURL + "/" + GraphVersion + "/dialog/oauth",
			TokenURL: c.graphURL + "/" + GraphVersion + "/oauth/access_token",
		},
		RedirectURL: RedirectURI(app.Origin),
		Scopes:      scopes,
	}
}

// AuthorizationURL builds the Facebook login dialog URL and returns it with
// its state.
func (c *Client) AuthorizationURL(app oauth.AppIdentity, opts oauth.AuthOptions) (string, string, error) {
	if app.ClientKey == "" {
		return "", "", fmt.Errorf("%w for facebook: app id is empty", oauth.ErrMissingAppSecret)
	}
	state := opts.StateOrNew()
	return c.oauthConfig(app).AuthCodeURL(state), state, nil
}

// ExchangeCode trades an authorization code for a short-lived user token.
// Callers usually follow up with UpgradeToLongLived.
func (c *Client) ExchangeCode(ctx context.Context, code string, app oauth.AppIdentity) (*oauth.Credential, error) {
	if err := app.Validate(oauth.PlatformFacebook); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("client_id", app.ClientKey)
	params.Set("client_secret", app.ClientSecret)
	params.Set("redirect_uri", RedirectURI(app.Origin))
	params.Set("code", code)

	cred, err := c.requestToken(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	cred.ClientKey = app.ClientKey
	cred.ClientSecret = app.ClientSecret
	return cred, nil
}

// UpgradeToLongLived exchanges the credential's token for a long-lived one
// and updates cred in place. This is a token exchange, not a refresh grant:
// Meta issues no refresh tokens.
func (c *Client) UpgradeToLongLived(ctx context.Context, cred *oauth.Credential, app oauth.AppIdentity) error {
	if !cred.HasAccessToken() {
		return fmt.Errorf("failed to upgrade token: %w", oauth.ErrTokenNotFound)
	}
	if app.ClientKey == "" {
		app.ClientKey, app.ClientSecret = cred.ClientKey, cred.ClientSecret
	}
	if err := app.Validate(oauth.PlatformFacebook); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", app.ClientKey)
	params.Set("client_secret", app.ClientSecret)
	params.Set("fb_exchange_token", cred.AccessToken)

	upgraded, err := c.requestToken(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to upgrade token: %w", err)
	}
	if upgraded.ExpiresAt.IsZero() {
		upgraded.ExpiresAt = c.now().Add(LongLivedTTL)
	}

	cred.AccessToken = upgraded.AccessToken
	cred.TokenType = upgraded.TokenType
	cred.ExpiresAt = upgraded.ExpiresAt
	cred.ClientKey = app.ClientKey
	cred.ClientSecret = app.ClientSecret
	return nil
}

// LinkedCredentials returns the credential once per Meta platform. A single
// login grants both Facebook and Instagram access.
func LinkedCredentials(cred *oauth.Credential) []*oauth.Credential {
	if cred == nil {
		return nil
	}
	fb := cred.Clone()
	fb.Platform = oauth.PlatformFacebook
	ig := cred.Clone()
	ig.Platform = oauth.PlatformInstagram
	return []*oauth.Credential{fb, ig}
}

func (c *Client) requestToken(ctx context.Context, params url.Values) (*oauth.Credential, error) {
	issuedAt := c.now()

	body, err := c.doRequest(ctx, "/oauth/access_token", "", params)
	if err != nil {
		return nil, err
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, &oauth.APIError{Platform: oauth.PlatformFacebook, Message: "no access token received"}
	}

	return &oauth.Credential{
		Platform:    oauth.PlatformFacebook,
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresAt:   oauth.ExpiryFrom(issuedAt, tok.ExpiresIn),
	}, nil
}
