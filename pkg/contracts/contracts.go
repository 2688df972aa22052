// Package contracts holds recorded platform API payloads, trimmed to the
// fields creatorfeed reads, and a stub server that replays them.
package contracts

import (
	"net/http"
	"strings"
)

// YouTube Data API v3.
const (
	YouTubeSearchContract = `{
		"kind": "youtube#searchListResponse",
		"items": [{
			"kind": "youtube#searchResult",
			"id": {"kind": "youtube#video", "videoId": "dQw4w9WgXcQ"},
			"snippet": {
				"publishedAt": "2024-05-01T17:00:00Z",
				"channelId": "UC123abc",
				"title": "Studio tour",
				"description": "A look around the new studio",
				"thumbnails": {
					"default": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg"},
					"high": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg"}
				},
				"channelTitle": "Creator"
			}
		}]
	}`

	YouTubeVideosContract = `{
		"kind": "youtube#videoListResponse",
		"items": [{
			"id": "dQw4w9WgXcQ",
			"contentDetails": {"duration": "PT4M13S"},
			"statistics": {"viewCount": "1500", "likeCount": "120", "commentCount": "14"}
		}]
	}`

	YouTubeChannelsContract = `{
		"kind": "youtube#channelListResponse",
		"items": [{"id": "UC123abc", "statistics": {"subscriberCount": "5400", "hiddenSubscriberCount": false}}]
	}`

	YouTubeErrorContract = `{
		"error": {
			"code": 403,
			"message": "The request cannot be completed because you have exceeded your quota.",
			"errors": [{"message": "quota", "domain": "youtube.quota", "reason": "quotaExceeded"}]
		}
	}`
)

// Meta Graph API.
const (
	GraphAccountsContract = `{
		"data": [{
			"id": "104",
			"name": "Creator",
			"access_token": "page-token",
			"followers_count": 310,
			"instagram_business_account": {"id": "1784", "username": "creator", "followers_count": 2200}
		}],
		"paging": {"cursors": {"before": "QVFI", "after": "QVFI"}}
	}`

	GraphMediaContract = `{
		"data": [{
			"id": "17895695668004550",
			"caption": "Golden hour",
			"media_type": "IMAGE",
			"media_url": "https://scontent.cdninstagram.com/v/golden.jpg",
			"permalink": "https://www.instagram.com/p/C6abc/",
			"timestamp": "2024-05-02T18:30:00+0000",
			"like_count": 310,
			"comments_count": 12
		}]
	}`

	GraphPostsContract = `{
		"data": [{
			"id": "104_998",
			"message": "New video is live",
			"created_time": "2024-05-03T09:00:00+0000",
			"full_picture": "https://scontent.xx.fbcdn.net/v/live.jpg",
			"permalink_url": "https://www.facebook.com/104/posts/998",
			"reactions": {"data": [], "summary": {"total_count": 44}},
			"comments": {"data": [], "summary": {"order": "ranked", "total_count": 6}}
		}]
	}`

	GraphTokenContract = `{"access_token": "EAAG-long", "token_type": "bearer", "expires_in": 5183944}`

	GraphErrorContract = `{
		"error": {
			"message": "Error validating access token: Session has expired.",
			"type": "OAuthException",
			"code": 190,
			"error_subcode": 463,
			"fbtrace_id": "A1b2C3"
		}
	}`
)

// TikTok API v2.
const (
	TikTokVideoListContract = `{
		"data": {
			"videos": [{
				"id": "7365",
				"title": "",
				"video_description": "Behind the scenes",
				"cover_image_url": "https://p16-sign.tiktokcdn.com/cover.jpeg",
				"share_url": "https://www.tiktok.com/@creator/video/7365",
				"like_count": 900,
				"comment_count": 33,
				"view_count": 12000,
				"create_time": 1714816800
			}],
			"cursor": 1714816800000,
			"has_more": false
		},
		"error": {"code": "ok", "message": "", "log_id": "20240504"}
	}`

	TikTokUserInfoContract = `{
		"data": {"user": {"open_id": "723f", "display_name": "creator", "follower_count": 4100}},
		"error": {"code": "ok", "message": "", "log_id": "20240504"}
	}`

	TikTokTokenContract = `{
		"access_token": "act.example",
		"expires_in": 86400,
		"open_id": "723f",
		"refresh_expires_in": 31536000,
		"refresh_token": "rft.example",
		"scope": "user.info.basic,video.list",
		"token_type": "Bearer"
	}`

	TikTokErrorContract = `{
		"data": {},
		"error": {"code": "access_token_invalid", "message": "The access token is invalid or not found in the request.", "log_id": "20240504"}
	}`
)

// Handler replays body for every request whose path ends with the route's
// key. Unknown paths get 404 with an empty object.
func Handler(routes map[string]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		for suffix, body := range routes {
			if strings.HasSuffix(r.URL.Path, suffix) {
				_, _ = w.Write([]byte(body))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	})
}

// FailingHandler answers every request with status and body.
func FailingHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}
