package oauth

import (
	"strings"

	"github.com/google/uuid"
)

// CallbackPath is the redirect path registered with a platform app.
func CallbackPath(p Platform) string {
	return "/api/callback/" + string(p)
}

// RedirectURI joins the deployment origin and path. Platforms disagree on
// whether the registered URI carries a trailing slash, so the caller states it.
func RedirectURI(origin, path string, trailingSlash bool) string {
	uri := strings.TrimRight(origin, "/")
	if p := strings.Trim(path, "/"); p != "" {
		uri += "/" + p
	}
	if trailingSlash {
		return uri + "/"
	}
	return uri
}

// NewState returns a random CSRF state token.
func NewState() string {
	return uuid.NewString()
}

// StateOrNew returns o.State, generating one when empty.
func (o AuthOptions) StateOrNew() string {
	if o.State != "" {
		return o.State
	}
	return NewState()
}
