package aggregator

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// Fetcher is the read side of a platform adapter.
//
// FetchPosts returns an empty slice, not an error, when the credential is
// nil or the platform call fails; only configuration errors are returned.
// FetchStats returns zero followers on any failure.
type Fetcher interface {
	FetchPosts(ctx context.Context, cred *oauth.Credential, limit int) ([]Post, error)
	FetchStats(ctx context.Context, cred *oauth.Credential) Stats
}

// Aggregator fans out to registered platform fetchers and merges their posts.
type Aggregator struct {
	items    []Post
	fetchers map[oauth.Platform]Fetcher
	limit    int
	logger   *zap.Logger
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithFetcher registers the fetcher used for a platform.
func WithFetcher(p oauth.Platform, f Fetcher) Option {
	return func(a *Aggregator) { a.fetchers[p] = f }
}

// WithLimit sets the per-platform fetch size.
func WithLimit(limit int) Option {
	return func(a *Aggregator) { a.limit = limit }
}

// WithLogger sets the logger used for absorbed platform failures.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// New creates a new Aggregator instance.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		items:    make([]Post, 0),
		fetchers: make(map[oauth.Platform]Fetcher),
		limit:    DefaultLimit,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SyncAll fetches posts from every platform that has a credential and a
// registered fetcher, concurrently. A failing platform contributes nothing;
// the others are still returned. Cross-platform order is unspecified.
func (a *Aggregator) SyncAll(ctx context.Context, creds map[oauth.Platform]*oauth.Credential) []Post {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		merged = make([]Post, 0)
	)

	for p, cred := range creds {
		f, ok := a.fetchers[p]
		if !ok || cred == nil {
			continue
		}
		wg.Add(1)
		go func(p oauth.Platform, f Fetcher, cred *oauth.Credential) {
			defer wg.Done()
			posts, err := a.fetchPosts(ctx, p, f, cred)
			if err != nil {
				a.logger.Warn("platform sync failed", zap.String("platform", string(p)), zap.Error(err))
				return
			}
			mu.Lock()
			merged = append(merged, posts...)
			mu.Unlock()
		}(p, f, cred)
	}

	wg.Wait()
	return merged
}

func (a *Aggregator) fetchPosts(ctx context.Context, p oauth.Platform, f Fetcher, cred *oauth.Credential) (posts []Post, err error) {
	defer func() {
		if r := recover(); r != nil {
			posts, err = nil, fmt.Errorf("%s fetcher panicked: %v", p, r)
		}
	}()
	return f.FetchPosts(ctx, cred, a.limit)
}

// StatsAll collects follower counts for every credentialed platform,
// concurrently. Results are ordered by platform.
func (a *Aggregator) StatsAll(ctx context.Context, creds map[oauth.Platform]*oauth.Credential) []Stats {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		stats = make([]Stats, 0, len(creds))
	)

	for p, cred := range creds {
		f, ok := a.fetchers[p]
		if !ok || cred == nil {
			continue
		}
		wg.Add(1)
		go func(p oauth.Platform, f Fetcher, cred *oauth.Credential) {
			defer wg.Done()
			s := f.FetchStats(ctx, cred)
			s.Platform = p
			mu.Lock()
			stats = append(stats, s)
			mu.Unlock()
		}(p, f, cred)
	}

	wg.Wait()
	sort.Slice(stats, func(i, j int) bool { return stats[i].Platform < stats[j].Platform })
	return stats
}

// AddItems adds posts to the aggregator's local feed.
func (a *Aggregator) AddItems(items []Post) {
	a.items = append(a.items, items...)
}

// GetFeed returns the local feed filtered and ordered by opts.
func (a *Aggregator) GetFeed(opts FeedOptions) []Post {
	return Select(a.items, opts)
}

// Select filters posts by date range and platform, orders them newest
// first and applies the limit. It never returns nil.
func Select(items []Post, opts FeedOptions) []Post {
	feed := make([]Post, 0, len(items))
	for _, item := range items {
		if !opts.Since.IsZero() && item.Date.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && item.Date.After(opts.Until) {
			continue
		}
		if len(opts.Platforms) > 0 && !slices.Contains(opts.Platforms, item.Platform) {
			continue
		}
		feed = append(feed, item)
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Date.After(feed[j].Date)
	})

	if opts.Limit > 0 && len(feed) > opts.Limit {
		feed = feed[:opts.Limit]
	}
	return feed
}
