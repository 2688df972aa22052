package meta

import (
	"strings"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// Page is a Facebook page the user manages.
type Page struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	AccessToken string            `json:"-"`
	Followers   int64             `json:"followers"`
	Instagram   *InstagramAccount `json:"instagram,omitempty"`
}

// Matches reports whether handle names this page by ID, name or Instagram
// username, ignoring case.
func (p Page) Matches(handle string) bool {
	if strings.EqualFold(p.ID, handle) || strings.EqualFold(p.Name, handle) {
		return true
	}
	return p.Instagram != nil && strings.EqualFold(p.Instagram.Username, handle)
}

// InstagramAccount is the Instagram business account linked to a page.
type InstagramAccount struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Followers int64  `json:"followers"`
}

// Media is one Instagram media item.
type Media struct {
	ID           string `json:"id"`
	Caption      string `json:"caption"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Permalink    string `json:"permalink"`
	Timestamp    string `json:"timestamp"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
}

// Post converts the media item into the unified feed shape. Videos carry
// their cover in thumbnail_url; images only have media_url.
func (m Media) Post() aggregator.Post {
	thumb := m.ThumbnailURL
	if thumb == "" {
		thumb = m.MediaURL
	}
	return aggregator.Post{
		ID:           m.ID,
		Platform:     oauth.PlatformInstagram,
		ThumbnailURL: thumb,
		Caption:      m.Caption,
		Likes:        m.LikeCount,
		Comments:     m.CommentCount,
		Date:         aggregator.NormalizeDate(m.Timestamp),
		URL:          m.Permalink,
	}
}

// PagePost is one post on a Facebook page.
type PagePost struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	Picture      string `json:"picture"`
	Permalink    string `json:"permalink"`
	Reactions    int64  `json:"reactions"`
	CommentCount int64  `json:"comment_count"`
}

// Post converts the page post into the unified feed shape.
func (p PagePost) Post() aggregator.Post {
	return aggregator.Post{
		ID:           p.ID,
		Platform:     oauth.PlatformFacebook,
		ThumbnailURL: p.Picture,
		Caption:      p.Message,
		Likes:        p.Reactions,
		Comments:     p.CommentCount,
		Date:         aggregator.NormalizeDate(p.CreatedTime),
		URL:          p.Permalink,
	}
}
