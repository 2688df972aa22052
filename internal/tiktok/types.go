package tiktok

import (
	"time"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// Video represents a TikTok video.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CoverImage   string    `json:"cover_image"`
	ShareURL     string    `json:"share_url"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	ViewCount    int64     `json:"view_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Post converts the video into the unified feed shape. The description is
// the caption; the title is kept when TikTok returns one.
func (v Video) Post() aggregator.Post {
	caption := v.Description
	if caption == "" {
		caption = v.Title
	}
	return aggregator.Post{
		ID:           v.ID,
		Platform:     oauth.PlatformTikTok,
		ThumbnailURL: v.CoverImage,
		Title:        v.Title,
		Caption:      caption,
		Likes:        v.LikeCount,
		Comments:     v.CommentCount,
		Views:        v.ViewCount,
		Date:         v.CreatedAt,
		URL:          v.ShareURL,
	}
}
