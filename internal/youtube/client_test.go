// Package youtube tests document the expected behavior of the YouTube client.
//
// Test requirements (this file serves as documentation):
// - Search and details calls are made in sequence and combined client-side
// - The API key travels as the key query parameter; OAuth tokens as a Bearer header
// - A missing key is a configuration error, never swallowed
// - Any other failure yields an empty feed
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

func apiKey(key string) *oauth.Credential {
	return &oauth.Credential{Platform: oauth.PlatformYouTube, AccessToken: key}
}

func searchAndDetailsServer(t *testing.T) *httptest.Server {
	t.Helper()
	searchResponse := map[string]interface{}{
		"items": []map[string]interface{}{
			{
				"id": map[string]interface{}{"videoId": "video123"},
				"snippet": map[string]interface{}{
					"title":        "Test Video",
					"description":  "A test video",
					"channelId":    "UC123",
					"channelTitle": "Test Channel",
					"publishedAt":  "2024-01-15T12:00:00Z",
					"thumbnails": map[string]interface{}{
						"default": map[string]interface{}{"url": "https://example.com/default.jpg"},
						"high":    map[string]interface{}{"url": "https://example.com/high.jpg"},
					},
				},
			},
		},
	}
	videoResponse := map[string]interface{}{
		"items": []map[string]interface{}{
			{
				"id": "video123",
				"statistics": map[string]interface{}{
					"viewCount":    "1000",
					"likeCount":    "50",
					"commentCount": "7",
				},
				"contentDetails": map[string]interface{}{"duration": "PT10M30S"},
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("expected key=test-key, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/youtube/v3/search":
			_ = json.NewEncoder(w).Encode(searchResponse)
		case "/youtube/v3/videos":
			if got := r.URL.Query().Get("id"); got != "video123" {
				t.Errorf("details call should request the searched IDs, got %q", got)
			}
			_ = json.NewEncoder(w).Encode(videoResponse)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// TestClient_FetchPosts documents the combined search + details flow:
// - Returns one post per searched video
// - Statistics come from the second call
// - YouTube posts carry a title and the highest-resolution thumbnail
func TestClient_FetchPosts(t *testing.T) {
	server := searchAndDetailsServer(t)
	client := NewClient(WithBaseURL(server.URL), WithQuery("creator name"))

	posts, err := client.FetchPosts(context.Background(), apiKey("test-key"), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}

	p := posts[0]
	if p.ID != "video123" || p.Platform != oauth.PlatformYouTube {
		t.Errorf("unexpected identity: %+v", p)
	}
	if p.Title != "Test Video" {
		t.Errorf("expected title 'Test Video', got %q", p.Title)
	}
	if p.Views != 1000 || p.Likes != 50 || p.Comments != 7 {
		t.Errorf("expected stats 1000/50/7, got %d/%d/%d", p.Views, p.Likes, p.Comments)
	}
	if p.ThumbnailURL != "https://example.com/high.jpg" {
		t.Errorf("expected high thumbnail, got %q", p.ThumbnailURL)
	}
	if !p.Date.Equal(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", p.Date)
	}
	if p.URL != "https://www.youtube.com/watch?v=video123" {
		t.Errorf("unexpected url %q", p.URL)
	}
}

// TestClient_FetchPosts_EmptySearch documents that an empty search result
// yields an empty feed without a details call.
func TestClient_FetchPosts_EmptySearch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/youtube/v3/search" {
			t.Errorf("details should not be requested for an empty search, got %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
	}))
	defer server.Close()

	posts, err := NewClient(WithBaseURL(server.URL)).FetchPosts(context.Background(), apiKey("k"), 10)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", posts)
	}
	if calls != 1 {
		t.Errorf("expected exactly one call, got %d", calls)
	}
}

// TestClient_FetchPosts_MissingKey documents the configuration error path.
func TestClient_FetchPosts_MissingKey(t *testing.T) {
	client := NewClient(WithBaseURL("http://127.0.0.1:1"))

	for _, key := range []string{"", "undefined", "null"} {
		_, err := client.FetchPosts(context.Background(), apiKey(key), 10)
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("key %q: expected ErrMissingAPIKey, got %v", key, err)
		}
	}
}

// TestClient_FetchPosts_NilCredential documents that an unlinked platform is
// simply empty.
func TestClient_FetchPosts_NilCredential(t *testing.T) {
	posts, err := NewClient().FetchPosts(context.Background(), nil, 10)

	if err != nil {
		t.Fatalf("nil credential must not error, got %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Errorf("expected empty slice, got %#v", posts)
	}
}

// TestClient_FetchRecentVideos_SendsSearchParameters documents the search query.
func TestClient_FetchRecentVideos_SendsSearchParameters(t *testing.T) {
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithQuery("a&b=c"), WithChannelID("UC+special/id"))
	_, _ = client.FetchRecentVideos(context.Background(), apiKey("k"), 5)

	for _, want := range []string{"type=video", "maxResults=5", "q=a%26b%3Dc", "channelId=UC%2Bspecial%2Fid"} {
		if !strings.Contains(captured, want) {
			t.Errorf("query %q should contain %q", captured, want)
		}
	}
}

// TestClient_BearerCredential documents OAuth-linked requests.
func TestClient_BearerCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer oauth-token" {
			t.Errorf("expected bearer header, got %q", auth)
		}
		if r.URL.Query().Has("key") {
			t.Error("bearer requests must not carry an API key")
		}
		if r.URL.Query().Get("mine") != "true" {
			t.Error("stats without a channel should ask for the caller's channel")
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{{"statistics": map[string]interface{}{"subscriberCount": "42"}}},
		})
	}))
	defer server.Close()

	cred := &oauth.Credential{Platform: oauth.PlatformYouTube, AccessToken: "oauth-token", TokenType: "Bearer"}
	stats := NewClient(WithBaseURL(server.URL)).FetchStats(context.Background(), cred)

	if stats.Followers != 42 {
		t.Errorf("expected 42 subscribers, got %d", stats.Followers)
	}
}

// TestClient_FetchStats documents the subscriber count lookup.
func TestClient_FetchStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/channels" || r.URL.Query().Get("id") != "UC123" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{{"statistics": map[string]interface{}{"subscriberCount": "1234"}}},
		})
	}))
	defer server.Close()

	stats := NewClient(WithBaseURL(server.URL), WithChannelID("UC123")).FetchStats(context.Background(), apiKey("k"))

	if stats.Followers != 1234 {
		t.Errorf("expected 1234, got %d", stats.Followers)
	}
}

// TestClient_Timeout documents timeout handling:
// - Respects context deadline
// - The feed degrades to empty instead of failing
func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := client.FetchRecentVideos(ctx, apiKey("k"), 5); err == nil {
		t.Fatal("expected timeout error")
	}
	posts, err := client.FetchPosts(ctx, apiKey("k"), 5)
	if err != nil || len(posts) != 0 {
		t.Errorf("expected swallowed timeout, got %v / %d posts", err, len(posts))
	}
}

func TestClient_RefreshIsUnsupported(t *testing.T) {
	_, err := NewClient().Refresh(context.Background(), apiKey("k"))
	if !errors.Is(err, oauth.ErrRefreshUnsupported) {
		t.Errorf("expected ErrRefreshUnsupported, got %v", err)
	}
}
