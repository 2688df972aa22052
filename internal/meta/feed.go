package meta

import (
	"context"

	"go.uber.org/zap"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// Feed is the per-platform view of the Graph client. Instagram and Facebook
// share discovery but are fetched, and fail, independently.
type Feed struct {
	client   *Client
	platform oauth.Platform
}

var _ aggregator.Fetcher = (*Feed)(nil)

// Instagram returns the Instagram view of the client.
func (c *Client) Instagram() *Feed {
	return &Feed{client: c, platform: oauth.PlatformInstagram}
}

// Facebook returns the Facebook page view of the client.
func (c *Client) Facebook() *Feed {
	return &Feed{client: c, platform: oauth.PlatformFacebook}
}

// Platform reports which platform this view serves.
func (f *Feed) Platform() oauth.Platform {
	return f.platform
}

// FetchPosts returns recent posts for the view's platform. A nil credential
// or any API failure yields no posts.
func (f *Feed) FetchPosts(ctx context.Context, cred *oauth.Credential, limit int) ([]aggregator.Post, error) {
	c := f.client
	if cred == nil {
		return []aggregator.Post{}, nil
	}
	token := c.policy.EnsureValid(ctx, cred, nil)
	if token == "" {
		return []aggregator.Post{}, nil
	}
	if limit <= 0 {
		limit = aggregator.DefaultLimit
	}

	var (
		posts []aggregator.Post
		err   error
	)
	switch f.platform {
	case oauth.PlatformInstagram:
		var media []Media
		media, err = c.FetchInstagramMedia(ctx, token, limit)
		for _, m := range media {
			posts = append(posts, m.Post())
		}
	default:
		var pagePosts []PagePost
		pagePosts, err = c.FetchPagePosts(ctx, token, limit)
		for _, p := range pagePosts {
			posts = append(posts, p.Post())
		}
	}

	if err != nil {
		c.logger.Warn("meta fetch failed", zap.String("platform", string(f.platform)), zap.Error(err))
		c.metrics.FetchFailure(string(f.platform), "posts")
		return []aggregator.Post{}, nil
	}
	if posts == nil {
		posts = []aggregator.Post{}
	}
	c.metrics.PostsFetched(string(f.platform), len(posts))
	return posts, nil
}

// FetchStats returns the target page's follower count, or that of its
// Instagram account for the Instagram view. Zero on any failure.
func (f *Feed) FetchStats(ctx context.Context, cred *oauth.Credential) aggregator.Stats {
	c := f.client
	stats := aggregator.Stats{Platform: f.platform}
	token := c.policy.EnsureValid(ctx, cred, nil)
	if token == "" {
		return stats
	}

	page, ok, err := c.resolvePage(ctx, token)
	if err != nil {
		c.logger.Warn("meta stats failed", zap.String("platform", string(f.platform)), zap.Error(err))
		c.metrics.FetchFailure(string(f.platform), "stats")
		return stats
	}
	if !ok {
		return stats
	}

	if f.platform == oauth.PlatformInstagram {
		if page.Instagram != nil {
			stats.Followers = page.Instagram.Followers
		}
		return stats
	}
	stats.Followers = page.Followers
	return stats
}
