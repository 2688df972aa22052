package tiktok

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// Transport performs every request the adapter makes. Swap it to route calls
// through a relay or to stub the platform in tests.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// RelayURL rewrites target into a relay request that carries the
// percent-encoded target as its url parameter. An empty relay returns target
// unchanged.
func RelayURL(relay, target string) string {
	if relay == "" {
		return target
	}
	sep := "?"
	if strings.Contains(relay, "?") {
		sep = "&"
	}
	return relay + sep + "url=" + url.QueryEscape(target)
}

// RelayTransport forwards every request through a relay of the form
// <relay>?url=<target>. Method, headers and body are passed through as is.
type RelayTransport struct {
	Relay string
	Base  oauth.HTTPClient
}

// NewRelayTransport creates a RelayTransport over the default HTTP client.
func NewRelayTransport(relay string) *RelayTransport {
	return &RelayTransport{Relay: relay, Base: &http.Client{}}
}

func (t *RelayTransport) Do(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultClient
	}
	if t.Relay == "" {
		return base.Do(req)
	}

	relayed, err := url.Parse(RelayURL(t.Relay, req.URL.String()))
	if err != nil {
		return nil, err
	}

	out := req.Clone(req.Context())
	out.URL = relayed
	out.Host = relayed.Host
	out.RequestURI = ""
	return base.Do(out)
}
