// Package aggregator combines posts from every connected platform into a
// unified feed.
//
// This package enables creatorfeed to:
// - Fan out to YouTube, Instagram, Facebook and TikTok concurrently
// - Normalize platform content into a single Post shape
// - Filter and order the merged feed for display
package aggregator

import (
	"time"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// DefaultLimit is the per-platform fetch size when none is given.
const DefaultLimit = 20

// Post is one fetched content item, platform-agnostic. YouTube fills Title;
// the social platforms fill Caption. Both may be present.
type Post struct {
	ID           string         `json:"id"`
	Platform     oauth.Platform `json:"platform"`
	ThumbnailURL string         `json:"thumbnailUrl"`
	Title        string         `json:"title,omitempty"`
	Caption      string         `json:"caption,omitempty"`
	Likes        int64          `json:"likes"`
	Comments     int64          `json:"comments"`
	Views        int64          `json:"views"`
	Date         time.Time      `json:"date"`
	URL          string         `json:"url"`
}

// Headline returns the semantically primary text for the post's platform.
func (p Post) Headline() string {
	primary, secondary := p.Caption, p.Title
	if p.Platform == oauth.PlatformYouTube {
		primary, secondary = p.Title, p.Caption
	}
	if primary != "" {
		return primary
	}
	return secondary
}

// Stats is the follower count of one platform, recomputed per call.
type Stats struct {
	Platform  oauth.Platform `json:"platform"`
	Followers int64          `json:"followers"`
}

// FeedOptions configures feed retrieval.
type FeedOptions struct {
	Limit     int
	Since     time.Time
	Until     time.Time
	Platforms []oauth.Platform
}
