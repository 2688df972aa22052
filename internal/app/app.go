// Package app wires configuration, token storage and the platform adapters
// into the services shared by the CLI and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/internal/config"
	"github.com/gauthierbraillon/creatorfeed/internal/meta"
	"github.com/gauthierbraillon/creatorfeed/internal/metrics"
	"github.com/gauthierbraillon/creatorfeed/internal/store"
	"github.com/gauthierbraillon/creatorfeed/internal/tiktok"
	"github.com/gauthierbraillon/creatorfeed/internal/youtube"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

const requestTimeout = 20 * time.Second

// Connector is the authorization side of a platform adapter.
type Connector interface {
	AuthorizationURL(app oauth.AppIdentity, opts oauth.AuthOptions) (string, string, error)
	ExchangeCode(ctx context.Context, code string, app oauth.AppIdentity) (*oauth.Credential, error)
}

// App holds the wired adapters and their shared collaborators.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Recorder
	Tokens     *oauth.TokenStorage
	Policy     *oauth.Policy
	YouTube    *youtube.Client
	Meta       *meta.Client
	TikTok     *tiktok.Client
	Aggregator *aggregator.Aggregator

	// Posts is the post cache. It is nil until OpenCache succeeds.
	Posts *store.PostStore

	now func() time.Time
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.Logger = logger }
}

// WithClock overrides the time source (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New builds every adapter from cfg. Refreshed tokens are written back to the
// token store in cfg's directory.
func New(cfg *config.Config, opts ...Option) *App {
	a := &App{
		Config: cfg,
		Logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)
	a.Tokens = oauth.NewTokenStorage(cfg.Dir())

	a.Policy = oauth.NewPolicy(
		oauth.WithClock(a.now),
		oauth.WithLogger(a.Logger.Named("oauth")),
		oauth.WithOnRefreshed(a.Tokens.Save),
		oauth.WithRefreshObserver(func(p oauth.Platform, err error) {
			a.Metrics.RefreshAttempt(string(p), err)
		}),
	)

	httpClient := &http.Client{Timeout: requestTimeout}

	ytOpts := []youtube.ClientOption{
		youtube.WithHTTPClient(httpClient),
		youtube.WithQuery(cfg.YouTube.Query),
		youtube.WithChannelID(cfg.YouTube.ChannelID),
		youtube.WithLogger(a.Logger.Named("youtube")),
		youtube.WithMetrics(a.Metrics),
	}
	if cfg.YouTube.APIURL != "" {
		ytOpts = append(ytOpts, youtube.WithBaseURL(cfg.YouTube.APIURL))
	}
	a.YouTube = youtube.NewClient(ytOpts...)

	metaOpts := []meta.ClientOption{
		meta.WithHTTPClient(httpClient),
		meta.WithFallbackPageID(cfg.Meta.FallbackPageID),
		meta.WithTargetHandle(cfg.Meta.TargetHandle),
		meta.WithPolicy(a.Policy),
		meta.WithClock(a.now),
		meta.WithLogger(a.Logger.Named("meta")),
		meta.WithMetrics(a.Metrics),
	}
	if cfg.Meta.APIURL != "" {
		metaOpts = append(metaOpts, meta.WithBaseURL(cfg.Meta.APIURL))
	}
	a.Meta = meta.NewClient(metaOpts...)

	ttOpts := []tiktok.ClientOption{
		tiktok.WithTransport(&tiktok.RelayTransport{Relay: cfg.TikTok.Relay, Base: httpClient}),
		tiktok.WithPolicy(a.Policy),
		tiktok.WithClock(a.now),
		tiktok.WithLogger(a.Logger.Named("tiktok")),
		tiktok.WithMetrics(a.Metrics),
	}
	if cfg.TikTok.APIURL != "" {
		ttOpts = append(ttOpts, tiktok.WithAPIBaseURL(cfg.TikTok.APIURL))
	}
	a.TikTok = tiktok.NewClient(ttOpts...)

	a.Aggregator = aggregator.New(
		aggregator.WithFetcher(oauth.PlatformYouTube, a.YouTube),
		aggregator.WithFetcher(oauth.PlatformInstagram, a.Meta.Instagram()),
		aggregator.WithFetcher(oauth.PlatformFacebook, a.Meta.Facebook()),
		aggregator.WithFetcher(oauth.PlatformTikTok, a.TikTok),
		aggregator.WithLimit(cfg.Limit),
		aggregator.WithLogger(a.Logger.Named("aggregator")),
	)

	return a
}

// OpenCache opens the post cache configured in cfg.
func (a *App) OpenCache() error {
	posts, err := store.Open(a.Config.Cache.Path)
	if err != nil {
		return err
	}
	a.Posts = posts
	return nil
}

// Close releases the post cache, if open.
func (a *App) Close() error {
	if a.Posts == nil {
		return nil
	}
	return a.Posts.Close()
}

// Connector returns the authorization side of p's adapter.
func (a *App) Connector(p oauth.Platform) (Connector, error) {
	switch p {
	case oauth.PlatformYouTube:
		return a.YouTube, nil
	case oauth.PlatformFacebook, oauth.PlatformInstagram:
		return a.Meta, nil
	case oauth.PlatformTikTok:
		return a.TikTok, nil
	}
	return nil, fmt.Errorf("%w %q", oauth.ErrUnknownPlatform, p)
}

// identity returns p's app registration, redirecting to origin when given.
func (a *App) identity(p oauth.Platform, origin string) oauth.AppIdentity {
	id := a.Config.App(p)
	if origin != "" {
		id.Origin = origin
	}
	return id
}

// AuthorizationURL returns the consent URL for p and the state the callback
// must echo. An empty origin uses the configured deployment origin.
func (a *App) AuthorizationURL(p oauth.Platform, origin, state string) (string, string, error) {
	if err := a.Config.Validate(p); err != nil {
		return "", "", err
	}
	c, err := a.Connector(p)
	if err != nil {
		return "", "", err
	}
	return c.AuthorizationURL(a.identity(p, origin), oauth.AuthOptions{State: state})
}

// Complete exchanges an authorization code and stores the resulting
// credentials. A Meta login is upgraded to a long-lived token when possible
// and stored for both Facebook and Instagram.
func (a *App) Complete(ctx context.Context, p oauth.Platform, code, origin string) ([]*oauth.Credential, error) {
	c, err := a.Connector(p)
	if err != nil {
		return nil, err
	}
	id := a.identity(p, origin)

	cred, err := c.ExchangeCode(ctx, code, id)
	if err != nil {
		return nil, err
	}

	creds := []*oauth.Credential{cred}
	if p == oauth.PlatformFacebook || p == oauth.PlatformInstagram {
		if err := a.Meta.UpgradeToLongLived(ctx, cred, id); err != nil {
			a.Logger.Warn("long-lived token upgrade failed, keeping short-lived token",
				zap.String("platform", string(p)), zap.Error(err))
		}
		creds = meta.LinkedCredentials(cred)
	}

	for _, cr := range creds {
		if err := a.Tokens.Save(cr); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
	}
	return creds, nil
}

// UpgradeMetaToken swaps the stored Meta token for a long-lived one and
// stores it for both Meta platforms.
func (a *App) UpgradeMetaToken(ctx context.Context) (*oauth.Credential, error) {
	cred, err := a.Tokens.Load(oauth.PlatformFacebook)
	if errors.Is(err, oauth.ErrTokenNotFound) {
		cred, err = a.Tokens.Load(oauth.PlatformInstagram)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meta token: %w", err)
	}

	if err := a.Meta.UpgradeToLongLived(ctx, cred, a.Config.App(oauth.PlatformFacebook)); err != nil {
		return nil, err
	}
	for _, cr := range meta.LinkedCredentials(cred) {
		if err := a.Tokens.Save(cr); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
	}
	return cred, nil
}

// Disconnect removes p's stored credential and any cached posts.
func (a *App) Disconnect(ctx context.Context, p oauth.Platform) (int64, error) {
	if err := a.Tokens.Delete(p); err != nil {
		return 0, err
	}
	if a.Posts == nil {
		return 0, nil
	}
	return a.Posts.DeletePlatform(ctx, p)
}

// Credentials returns the credential used for each linked platform. YouTube
// falls back to the configured API key when no usable OAuth token is stored.
func (a *App) Credentials() map[oauth.Platform]*oauth.Credential {
	creds := a.Tokens.LoadAll()

	if key := a.Config.YouTube.APIKey; key != "" {
		yt := creds[oauth.PlatformYouTube]
		state := oauth.CredentialState(yt, a.now())
		if state == oauth.StateUnlinked || state == oauth.StateExpired {
			creds[oauth.PlatformYouTube] = &oauth.Credential{Platform: oauth.PlatformYouTube, AccessToken: key}
		}
	}
	return creds
}

// Feed syncs every linked platform selected by opts and returns the merged
// feed. Synced posts are written to the post cache when it is open.
func (a *App) Feed(ctx context.Context, opts aggregator.FeedOptions) []aggregator.Post {
	creds := a.Credentials()
	if len(opts.Platforms) > 0 {
		selected := make(map[oauth.Platform]*oauth.Credential, len(opts.Platforms))
		for _, p := range opts.Platforms {
			if cred, ok := creds[p]; ok {
				selected[p] = cred
			}
		}
		creds = selected
	}

	posts := a.Aggregator.SyncAll(ctx, creds)
	if a.Posts != nil {
		if err := a.Posts.SavePosts(ctx, posts); err != nil {
			a.Logger.Warn("failed to cache posts", zap.Error(err))
		}
	}
	return aggregator.Select(posts, opts)
}

// CachedFeed returns posts from the cache without calling any platform.
func (a *App) CachedFeed(ctx context.Context, opts aggregator.FeedOptions) ([]aggregator.Post, error) {
	if a.Posts == nil {
		return nil, errors.New("post cache is not open")
	}
	var platform oauth.Platform
	if len(opts.Platforms) == 1 {
		platform = opts.Platforms[0]
	}
	posts, err := a.Posts.ListPosts(ctx, platform, 0)
	if err != nil {
		return nil, err
	}
	return aggregator.Select(posts, opts), nil
}

// Stats returns follower counts for every linked platform.
func (a *App) Stats(ctx context.Context) []aggregator.Stats {
	return a.Aggregator.StatsAll(ctx, a.Credentials())
}
