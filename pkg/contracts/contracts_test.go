// Package contracts tests verify that every platform adapter parses the
// recorded payloads and honors the shared fetcher contract.
//
// Test requirements (this file serves as documentation):
// - Each adapter maps its recorded payload onto the unified Post shape
// - A nil credential yields an empty, non-nil slice and no error
// - A platform error yields an empty feed, zero followers and no error
// - Each ParseError recognizes its own envelope and ignores success bodies
package contracts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/internal/meta"
	"github.com/gauthierbraillon/creatorfeed/internal/tiktok"
	"github.com/gauthierbraillon/creatorfeed/internal/youtube"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

var issuedAt = time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return issuedAt }

type adapter struct {
	platform oauth.Platform
	fetcher  func(baseURL string) aggregator.Fetcher
	errBody  string
}

func adapters() []adapter {
	return []adapter{
		{oauth.PlatformYouTube, func(u string) aggregator.Fetcher {
			return youtube.NewClient(youtube.WithBaseURL(u), youtube.WithChannelID("UC123abc"))
		}, YouTubeErrorContract},
		{oauth.PlatformInstagram, func(u string) aggregator.Fetcher {
			return meta.NewClient(meta.WithBaseURL(u), meta.WithClock(clock)).Instagram()
		}, GraphErrorContract},
		{oauth.PlatformFacebook, func(u string) aggregator.Fetcher {
			return meta.NewClient(meta.WithBaseURL(u), meta.WithClock(clock)).Facebook()
		}, GraphErrorContract},
		{oauth.PlatformTikTok, func(u string) aggregator.Fetcher {
			return tiktok.NewClient(tiktok.WithAPIBaseURL(u), tiktok.WithClock(clock))
		}, TikTokErrorContract},
	}
}

func recordedAPI(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(Handler(map[string]string{
		"/youtube/v3/search":   YouTubeSearchContract,
		"/youtube/v3/videos":   YouTubeVideosContract,
		"/youtube/v3/channels": YouTubeChannelsContract,
		"/me/accounts":         GraphAccountsContract,
		"/1784/media":          GraphMediaContract,
		"/104/posts":           GraphPostsContract,
		"/v2/video/list/":      TikTokVideoListContract,
		"/v2/user/info/":       TikTokUserInfoContract,
	}))
	t.Cleanup(server.Close)
	return server
}

func cred(p oauth.Platform) *oauth.Credential {
	return &oauth.Credential{Platform: p, AccessToken: "token-" + string(p)}
}

func TestAdapters_ParseRecordedPosts(t *testing.T) {
	server := recordedAPI(t)

	want := map[oauth.Platform]aggregator.Post{
		oauth.PlatformYouTube: {
			ID: "dQw4w9WgXcQ", Platform: oauth.PlatformYouTube,
			ThumbnailURL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
			Title:        "Studio tour", Caption: "A look around the new studio",
			Likes: 120, Comments: 14, Views: 1500,
			Date: time.Date(2024, 5, 1, 17, 0, 0, 0, time.UTC),
			URL:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		oauth.PlatformInstagram: {
			ID: "17895695668004550", Platform: oauth.PlatformInstagram,
			ThumbnailURL: "https://scontent.cdninstagram.com/v/golden.jpg",
			Caption:      "Golden hour", Likes: 310, Comments: 12,
			Date: time.Date(2024, 5, 2, 18, 30, 0, 0, time.UTC),
			URL:  "https://www.instagram.com/p/C6abc/",
		},
		oauth.PlatformFacebook: {
			ID: "104_998", Platform: oauth.PlatformFacebook,
			ThumbnailURL: "https://scontent.xx.fbcdn.net/v/live.jpg",
			Caption:      "New video is live", Likes: 44, Comments: 6,
			Date: time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC),
			URL:  "https://www.facebook.com/104/posts/998",
		},
		oauth.PlatformTikTok: {
			ID: "7365", Platform: oauth.PlatformTikTok,
			ThumbnailURL: "https://p16-sign.tiktokcdn.com/cover.jpeg",
			Caption:      "Behind the scenes", Likes: 900, Comments: 33, Views: 12000,
			Date: time.Unix(1714816800, 0).UTC(),
			URL:  "https://www.tiktok.com/@creator/video/7365",
		},
	}

	for _, a := range adapters() {
		t.Run(string(a.platform), func(t *testing.T) {
			posts, err := a.fetcher(server.URL).FetchPosts(context.Background(), cred(a.platform), 10)
			require.NoError(t, err)
			require.Len(t, posts, 1)

			got := posts[0]
			expected := want[a.platform]
			assert.True(t, expected.Date.Equal(got.Date), "date: want %v, got %v", expected.Date, got.Date)
			got.Date = expected.Date
			assert.Equal(t, expected, got)
		})
	}
}

func TestAdapters_ParseRecordedStats(t *testing.T) {
	server := recordedAPI(t)

	want := map[oauth.Platform]int64{
		oauth.PlatformYouTube:   5400,
		oauth.PlatformInstagram: 2200,
		oauth.PlatformFacebook:  310,
		oauth.PlatformTikTok:    4100,
	}

	for _, a := range adapters() {
		t.Run(string(a.platform), func(t *testing.T) {
			stats := a.fetcher(server.URL).FetchStats(context.Background(), cred(a.platform))
			assert.Equal(t, want[a.platform], stats.Followers)
			assert.Equal(t, a.platform, stats.Platform)
		})
	}
}

func TestAdapters_NilCredentialIsEmptyFeed(t *testing.T) {
	server := recordedAPI(t)

	for _, a := range adapters() {
		t.Run(string(a.platform), func(t *testing.T) {
			f := a.fetcher(server.URL)

			posts, err := f.FetchPosts(context.Background(), nil, 10)
			require.NoError(t, err)
			assert.NotNil(t, posts)
			assert.Empty(t, posts)
			assert.Zero(t, f.FetchStats(context.Background(), nil).Followers)
		})
	}
}

func TestAdapters_PlatformErrorsAreAbsorbed(t *testing.T) {
	for _, a := range adapters() {
		t.Run(string(a.platform), func(t *testing.T) {
			server := httptest.NewServer(FailingHandler(http.StatusUnauthorized, a.errBody))
			defer server.Close()
			f := a.fetcher(server.URL)

			posts, err := f.FetchPosts(context.Background(), cred(a.platform), 10)
			require.NoError(t, err)
			assert.NotNil(t, posts)
			assert.Empty(t, posts)
			assert.Zero(t, f.FetchStats(context.Background(), cred(a.platform)).Followers)
		})
	}
}

func TestParseError_RecognizesEachEnvelope(t *testing.T) {
	tests := []struct {
		platform oauth.Platform
		parse    func([]byte) error
		envelope string
		success  string
		code     string
	}{
		{oauth.PlatformYouTube, youtube.ParseError, YouTubeErrorContract, YouTubeVideosContract, "quotaExceeded"},
		{oauth.PlatformFacebook, meta.ParseError, GraphErrorContract, GraphMediaContract, "190/463"},
		{oauth.PlatformTikTok, tiktok.ParseError, TikTokErrorContract, TikTokVideoListContract, "access_token_invalid"},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			var apiErr *oauth.APIError
			require.ErrorAs(t, tt.parse([]byte(tt.envelope)), &apiErr)
			assert.Equal(t, tt.platform, apiErr.Platform)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)

			assert.NoError(t, tt.parse([]byte(tt.success)))
		})
	}
}

// TestTokenResponses_StampAbsoluteExpiry checks the RFC 6749 section 5.1
// token payloads each platform returns.
func TestTokenResponses_StampAbsoluteExpiry(t *testing.T) {
	app := oauth.AppIdentity{ClientKey: "key", ClientSecret: "secret", Origin: "https://creator.example"}

	t.Run("tiktok", func(t *testing.T) {
		server := httptest.NewServer(Handler(map[string]string{"/v2/oauth/token/": TikTokTokenContract}))
		defer server.Close()

		c, err := tiktok.NewClient(tiktok.WithAPIBaseURL(server.URL), tiktok.WithClock(clock)).
			ExchangeCode(context.Background(), "code", app)
		require.NoError(t, err)
		assert.Equal(t, "act.example", c.AccessToken)
		assert.Equal(t, issuedAt.Add(24*time.Hour), c.ExpiresAt)
		assert.Equal(t, issuedAt.Add(365*24*time.Hour), c.RefreshExpiresAt)
	})

	t.Run("meta", func(t *testing.T) {
		server := httptest.NewServer(Handler(map[string]string{"/oauth/access_token": GraphTokenContract}))
		defer server.Close()

		c, err := meta.NewClient(meta.WithBaseURL(server.URL), meta.WithClock(clock)).
			ExchangeCode(context.Background(), "code", app)
		require.NoError(t, err)
		assert.Equal(t, "EAAG-long", c.AccessToken)
		assert.Equal(t, issuedAt.Add(5183944*time.Second), c.ExpiresAt)
	})
}
