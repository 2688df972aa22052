// Package oauth provides the credential model and token lifecycle helpers
// shared by the creatorfeed platform adapters.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrTokenNotFound      = errors.New("token not found")
	ErrInvalidState       = errors.New("invalid OAuth state")
	ErrRefreshUnsupported = errors.New("token refresh not supported for this platform")
	ErrMissingAppSecret   = errors.New("missing app credentials")
	ErrUnknownPlatform    = errors.New("unknown platform")
)

// Platform identifies a connected social platform.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTikTok    Platform = "tiktok"
)

// Platforms returns every supported platform in display order.
func Platforms() []Platform {
	return []Platform{PlatformYouTube, PlatformInstagram, PlatformFacebook, PlatformTikTok}
}

// ParsePlatform validates a user-supplied platform name.
func ParsePlatform(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Platforms() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w %q: must be one of youtube, instagram, facebook, tiktok", ErrUnknownPlatform, name)
}

// AppIdentity is the platform app registration used for authorization,
// exchange and refresh. Origin is the deployment origin the redirect URI is
// derived from.
type AppIdentity struct {
	ClientKey    string
	ClientSecret string // #nosec G117 - app secret supplied from config, never hardcoded
	Origin       string
}

// Validate reports a configuration error when the identity is incomplete.
func (a AppIdentity) Validate(p Platform) error {
	if a.ClientKey == "" || a.ClientSecret == "" {
		return fmt.Errorf("%w for %s: set the client id/key and secret in config or environment", ErrMissingAppSecret, p)
	}
	return nil
}

// AuthOptions tunes authorization URL construction. An empty State is
// replaced with a freshly generated one.
type AuthOptions struct {
	State string
}

// Credential is the stored token record for one platform connection.
// It is mutated in place when a refresh succeeds.
type Credential struct {
	Platform         Platform  `json:"platform"`
	AccessToken      string    `json:"access_token"`  // #nosec G117 - JSON field for OAuth token, not an exposed secret
	RefreshToken     string    `json:"refresh_token"` // #nosec G117 - JSON field for OAuth token, not an exposed secret
	TokenType        string    `json:"token_type,omitempty"`
	ExpiresAt        time.Time `json:"expires_at,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
	ClientKey        string    `json:"client_key,omitempty"`
	ClientSecret     string    `json:"client_secret,omitempty"` // #nosec G117 - JSON field for app identity
	OpenID           string    `json:"open_id,omitempty"`
	Scope            string    `json:"scope,omitempty"`
}

// HasAccessToken reports whether the access token is usable. The literal
// strings "undefined" and "null" are deserialization artifacts, not tokens.
func (c *Credential) HasAccessToken() bool {
	if c == nil {
		return false
	}
	switch strings.TrimSpace(c.AccessToken) {
	case "", "undefined", "null":
		return false
	}
	return true
}

// Refreshable reports whether every refresh prerequisite is present.
func (c *Credential) Refreshable() bool {
	return c != nil &&
		c.RefreshToken != "" &&
		c.ClientKey != "" &&
		c.ClientSecret != "" &&
		!c.ExpiresAt.IsZero()
}

// ExpiresWithin reports whether the token expires within d of now.
// A credential without a known expiry never expires.
func (c *Credential) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt.Add(-d))
}

// Clone returns a copy that can be stored under another platform.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// State is the link state of a credential as shown to the admin.
type State string

const (
	StateUnlinked State = "unlinked"
	StateValid    State = "valid"
	StateExpiring State = "expiring"
	StateExpired  State = "expired"
)

// CredentialState classifies a credential at the given instant.
func CredentialState(c *Credential, now time.Time) State {
	switch {
	case !c.HasAccessToken():
		return StateUnlinked
	case c.ExpiresAt.IsZero():
		return StateValid
	case !now.Before(c.ExpiresAt):
		return StateExpired
	case c.ExpiresWithin(now, RefreshSkew):
		return StateExpiring
	default:
		return StateValid
	}
}

// APIError is an authorization or exchange failure reported by a platform,
// normalized from that platform's error envelope.
type APIError struct {
	Platform Platform
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request rejected"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s API error (%s): %s", e.Platform, e.Code, msg)
	}
	return fmt.Sprintf("%s API error: %s", e.Platform, msg)
}

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PostForm sends a form-encoded POST and returns the status code and body.
// Non-2xx statuses are not treated as errors so callers can parse the
// platform's error envelope.
func PostForm(ctx context.Context, client HTTPClient, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reach token endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// ExpiryFrom converts a server-declared lifetime in seconds into an absolute
// expiry. A non-positive lifetime yields the zero time.
func ExpiryFrom(issuedAt time.Time, expiresIn int64) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return issuedAt.Add(time.Duration(expiresIn) * time.Second)
}
