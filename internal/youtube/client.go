// Package youtube provides a client for the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/internal/metrics"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

const defaultBaseURL = "https://www.googleapis.com"

// ErrMissingAPIKey is returned when no API key is configured. It is a
// configuration error and is never swallowed.
var ErrMissingAPIKey = errors.New("YouTube API key is not configured - set CREATORFEED_YOUTUBE_API_KEY")

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithQuery sets the search query used to find the creator's videos.
func WithQuery(query string) ClientOption {
	return func(c *Client) {
		c.query = query
	}
}

// WithChannelID restricts search to one channel and enables subscriber stats.
func WithChannelID(channelID string) ClientOption {
	return func(c *Client) {
		c.channelID = channelID
	}
}

// WithLogger sets the logger used for absorbed fetch failures.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the recorder for absorbed fetch failures.
func WithMetrics(r *metrics.Recorder) ClientOption {
	return func(c *Client) {
		c.metrics = r
	}
}

// Client is a YouTube Data API client authenticated by a static API key.
type Client struct {
	baseURL    string
	query      string
	channelID  string
	httpClient HTTPClient
	logger     *zap.Logger
	metrics    *metrics.Recorder
	oauth      oauthSettings
}

// NewClient creates a new YouTube API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
		oauth:      defaultOAuthSettings(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchPosts returns the creator's recent videos as posts. A nil credential
// yields no posts; a credential without a key is ErrMissingAPIKey. API
// failures are logged and yield no posts.
func (c *Client) FetchPosts(ctx context.Context, cred *oauth.Credential, limit int) ([]aggregator.Post, error) {
	if cred == nil {
		return []aggregator.Post{}, nil
	}
	if !cred.HasAccessToken() {
		return nil, ErrMissingAPIKey
	}
	if limit <= 0 {
		limit = aggregator.DefaultLimit
	}

	videos, err := c.FetchRecentVideos(ctx, cred, limit)
	if err != nil {
		c.logger.Warn("youtube fetch failed", zap.Error(err))
		c.metrics.FetchFailure(string(oauth.PlatformYouTube), "posts")
		return []aggregator.Post{}, nil
	}

	posts := make([]aggregator.Post, 0, len(videos))
	for _, v := range videos {
		posts = append(posts, v.Post())
	}
	c.metrics.PostsFetched(string(oauth.PlatformYouTube), len(posts))
	return posts, nil
}

// FetchRecentVideos searches for videos and combines the results with a
// second statistics lookup.
func (c *Client) FetchRecentVideos(ctx context.Context, cred *oauth.Credential, limit int) ([]Video, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("order", "date")
	params.Set("maxResults", strconv.Itoa(limit))
	if c.query != "" {
		params.Set("q", c.query)
	}
	if c.channelID != "" {
		params.Set("channelId", c.channelID)
	}

	body, err := c.doRequest(ctx, cred, "/youtube/v3/search", params)
	if err != nil {
		return nil, err
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	if len(searchResp.Items) == 0 {
		return []Video{}, nil
	}

	videoIDs := make([]string, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		videoIDs = append(videoIDs, item.ID.VideoID)
	}

	details := url.Values{}
	details.Set("part", "statistics,contentDetails")
	details.Set("id", strings.Join(videoIDs, ","))

	body, err = c.doRequest(ctx, cred, "/youtube/v3/videos", details)
	if err != nil {
		return nil, err
	}

	var videosResp videosResponse
	if err := json.Unmarshal(body, &videosResp); err != nil {
		return nil, fmt.Errorf("failed to parse videos response: %w", err)
	}

	statsMap := make(map[string]videoStats)
	for _, item := range videosResp.Items {
		statsMap[item.ID] = videoStats{
			viewCount:    parseCount(item.Statistics.ViewCount),
			likeCount:    parseCount(item.Statistics.LikeCount),
			commentCount: parseCount(item.Statistics.CommentCount),
			duration:     item.ContentDetails.Duration,
		}
	}

	videos := make([]Video, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		stats := statsMap[item.ID.VideoID]
		videos = append(videos, Video{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			Thumbnail:    item.Snippet.Thumbnails.best(),
			PublishedAt:  aggregator.NormalizeDate(item.Snippet.PublishedAt),
			ViewCount:    stats.viewCount,
			LikeCount:    stats.likeCount,
			CommentCount: stats.commentCount,
			Duration:     stats.duration,
			URL:          fmt.Sprintf("https://www.youtube.com/watch?v=%s", item.ID.VideoID),
		})
	}

	return videos, nil
}

// FetchStats returns the channel's subscriber count, or zero on any failure.
func (c *Client) FetchStats(ctx context.Context, cred *oauth.Credential) aggregator.Stats {
	stats := aggregator.Stats{Platform: oauth.PlatformYouTube}
	if !cred.HasAccessToken() {
		return stats
	}

	params := url.Values{}
	params.Set("part", "statistics")
	switch {
	case c.channelID != "":
		params.Set("id", c.channelID)
	case isBearer(cred):
		params.Set("mine", "true")
	default:
		return stats
	}

	body, err := c.doRequest(ctx, cred, "/youtube/v3/channels", params)
	if err != nil {
		c.logger.Warn("youtube stats failed", zap.Error(err))
		c.metrics.FetchFailure(string(oauth.PlatformYouTube), "stats")
		return stats
	}

	var resp channelsResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Items) == 0 {
		return stats
	}
	stats.Followers = parseCount(resp.Items[0].Statistics.SubscriberCount)
	return stats
}

// Refresh is not supported: the adapter authenticates with an API key.
func (c *Client) Refresh(_ context.Context, _ *oauth.Credential) (*oauth.Credential, error) {
	return nil, oauth.ErrRefreshUnsupported
}

func (c *Client) doRequest(ctx context.Context, cred *oauth.Credential, path string, params url.Values) ([]byte, error) {
	if isBearer(cred) {
		params.Del("key")
	} else {
		params.Set("key", cred.AccessToken)
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if isBearer(cred) {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", cred.AccessToken))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if apiErr := ParseError(body); apiErr != nil {
			return nil, apiErr
		}
		return nil, c.handleAPIError(resp.StatusCode)
	}

	return body, nil
}

func isBearer(cred *oauth.Credential) bool {
	return cred != nil && strings.EqualFold(cred.TokenType, "bearer")
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// ParseError extracts Google's {"error":{"code","message","errors":[{"reason"}]}}
// envelope. It returns nil when body is not an error envelope.
func ParseError(body []byte) error {
	var env struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil
	}
	code := env.Error.Status
	if len(env.Error.Errors) > 0 && env.Error.Errors[0].Reason != "" {
		code = env.Error.Errors[0].Reason
	}
	return &oauth.APIError{
		Platform: oauth.PlatformYouTube,
		Status:   env.Error.Code,
		Code:     code,
		Message:  env.Error.Message,
	}
}

// API response types (private - implementation detail)

type thumbnails struct {
	Default struct {
		URL string `json:"url"`
	} `json:"default"`
	Medium struct {
		URL string `json:"url"`
	} `json:"medium"`
	High struct {
		URL string `json:"url"`
	} `json:"high"`
}

func (t thumbnails) best() string {
	for _, u := range []string{t.High.URL, t.Medium.URL, t.Default.URL} {
		if u != "" {
			return u
		}
	}
	return ""
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string     `json:"title"`
			Description  string     `json:"description"`
			ChannelID    string     `json:"channelId"`
			ChannelTitle string     `json:"channelTitle"`
			PublishedAt  string     `json:"publishedAt"`
			Thumbnails   thumbnails `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type channelsResponse struct {
	Items []struct {
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type videoStats struct {
	viewCount    int64
	likeCount    int64
	commentCount int64
	duration     string
}

func (c *Client) handleAPIError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("YouTube API authentication failed - check the API key or run 'creatorfeed connect youtube'")
	case http.StatusForbidden:
		return fmt.Errorf("YouTube API access denied - check the key's API restrictions and quota")
	case http.StatusTooManyRequests:
		return fmt.Errorf("YouTube API rate limit exceeded - please try again later")
	case http.StatusServiceUnavailable:
		return fmt.Errorf("YouTube API temporarily unavailable - please try again in a few minutes")
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Errorf("YouTube API server error - please try again later")
	default:
		return fmt.Errorf("YouTube API error (status %d) - please try again", statusCode)
	}
}
