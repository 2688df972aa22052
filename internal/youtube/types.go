// Package youtube provides a client for the YouTube Data API v3.
//
// This package enables creatorfeed to:
// - Find the creator's recent videos by search query or channel
// - Combine search results with per-video statistics
// - Report the channel's subscriber count
// - Optionally link a Google account through OAuth
package youtube

import (
	"time"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// Video represents a YouTube video.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	Thumbnail    string    `json:"thumbnail"`
	PublishedAt  time.Time `json:"published_at"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	Duration     string    `json:"duration"`
	URL          string    `json:"url"`
}

// Post converts the video into the unified feed shape.
func (v Video) Post() aggregator.Post {
	return aggregator.Post{
		ID:           v.ID,
		Platform:     oauth.PlatformYouTube,
		ThumbnailURL: v.Thumbnail,
		Title:        v.Title,
		Caption:      v.Description,
		Likes:        v.LikeCount,
		Comments:     v.CommentCount,
		Views:        v.ViewCount,
		Date:         v.PublishedAt,
		URL:          v.URL,
	}
}
