package oauth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RefreshSkew is how long before expiry a token is renewed.
const RefreshSkew = 5 * time.Minute

// Refresher performs a platform-specific refresh. It returns a credential
// carrying the new access token, the rotated refresh token if any and the
// new expiry; it must not mutate its argument.
type Refresher interface {
	Refresh(ctx context.Context, cred *Credential) (*Credential, error)
}

// Policy decides whether a credential needs renewing before use.
// Refreshes are not serialized: two callers racing on the same expiring
// credential may both refresh, and the last write wins.
type Policy struct {
	now         func() time.Time
	logger      *zap.Logger
	onRefreshed func(*Credential) error
	observe     func(Platform, error)
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithClock overrides the time source.
func WithClock(now func() time.Time) PolicyOption {
	return func(p *Policy) { p.now = now }
}

// WithLogger sets the logger used for swallowed refresh failures.
func WithLogger(logger *zap.Logger) PolicyOption {
	return func(p *Policy) { p.logger = logger }
}

// WithOnRefreshed registers the persistence callback invoked after every
// successful refresh.
func WithOnRefreshed(fn func(*Credential) error) PolicyOption {
	return func(p *Policy) { p.onRefreshed = fn }
}

// WithRefreshObserver registers a hook called after every refresh attempt
// with its outcome.
func WithRefreshObserver(fn func(Platform, error)) PolicyOption {
	return func(p *Policy) { p.observe = fn }
}

func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Now returns the policy's current time.
func (p *Policy) Now() time.Time {
	return p.now()
}

// EnsureValid returns the access token to use for cred, refreshing it first
// when it is within RefreshSkew of expiry and every refresh prerequisite is
// present. An empty result means there is no usable token.
//
// A failed refresh is logged and the old token is returned; the platform
// call that follows carries the risk of an auth error.
func (p *Policy) EnsureValid(ctx context.Context, cred *Credential, r Refresher) string {
	if !cred.HasAccessToken() {
		return ""
	}
	if r == nil || !cred.Refreshable() {
		return cred.AccessToken
	}
	if !cred.ExpiresWithin(p.now(), RefreshSkew) {
		return cred.AccessToken
	}

	log := p.logger.With(zap.String("platform", string(cred.Platform)))

	refreshed, err := r.Refresh(ctx, cred)
	if err == nil && !refreshed.HasAccessToken() {
		err = &APIError{Platform: cred.Platform, Message: "refresh returned no access token"}
	}
	if p.observe != nil {
		p.observe(cred.Platform, err)
	}
	if err != nil {
		log.Warn("token refresh failed, using existing token", zap.Error(err))
		return cred.AccessToken
	}

	cred.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		cred.RefreshToken = refreshed.RefreshToken
	}
	if !refreshed.ExpiresAt.IsZero() {
		cred.ExpiresAt = refreshed.ExpiresAt
	}
	if !refreshed.RefreshExpiresAt.IsZero() {
		cred.RefreshExpiresAt = refreshed.RefreshExpiresAt
	}
	if refreshed.Scope != "" {
		cred.Scope = refreshed.Scope
	}
	log.Info("token refreshed", zap.Time("expires_at", cred.ExpiresAt))

	if p.onRefreshed != nil {
		if err := p.onRefreshed(cred); err != nil {
			log.Warn("failed to persist refreshed token", zap.Error(err))
		}
	}

	return cred.AccessToken
}
