// Package tiktok provides a client for the TikTok Open API v2.
//
// This package enables creatorfeed to:
// - Link a TikTok account through the v2 authorization code flow
// - Keep the access token fresh with the refresh token grant
// - List the creator's videos and follower count
//
// Every call goes through an injectable Transport so deployments that must
// not reach the API directly can route through a relay.
package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/internal/metrics"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

const (
	defaultAPIBaseURL  = "https://open.tiktokapis.com"
	defaultAuthBaseURL = "https://www.tiktok.com"

	// maxCount is the largest page the video list endpoint accepts.
	maxCount = 20

	videoFields = "id,title,video_description,cover_image_url,share_url,like_count,comment_count,view_count,create_time"
	userFields  = "open_id,display_name,follower_count"
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTransport sets the transport every request goes through.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithRelay routes every request through the given relay.
func WithRelay(relay string) ClientOption {
	return func(c *Client) {
		c.transport = NewRelayTransport(relay)
	}
}

// WithAPIBaseURL sets a custom API base URL (useful for testing).
func WithAPIBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.apiBaseURL = strings.TrimRight(u, "/")
	}
}

// WithAuthBaseURL sets a custom authorization host (useful for testing).
func WithAuthBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.authBaseURL = strings.TrimRight(u, "/")
	}
}

// WithPolicy sets the refresh policy applied before every data call.
func WithPolicy(p *oauth.Policy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// WithClock overrides the time source used to stamp token expiries.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
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

// Client is a TikTok API client.
type Client struct {
	apiBaseURL  string
	authBaseURL string
	transport   Transport
	policy      *oauth.Policy
	now         func() time.Time
	logger      *zap.Logger
	metrics     *metrics.Recorder
}

// NewClient creates a new TikTok API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		apiBaseURL:  defaultAPIBaseURL,
		authBaseURL: defaultAuthBaseURL,
		transport:   &http.Client{},
		now:         time.Now,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.policy == nil {
		c.policy = oauth.NewPolicy(oauth.WithClock(c.now), oauth.WithLogger(c.logger))
	}

	return c
}

// FetchPosts returns the creator's recent videos as posts. A nil credential
// or any API failure yields no posts.
func (c *Client) FetchPosts(ctx context.Context, cred *oauth.Credential, limit int) ([]aggregator.Post, error) {
	if cred == nil {
		return []aggregator.Post{}, nil
	}
	token := c.policy.EnsureValid(ctx, cred, c)
	if token == "" {
		return []aggregator.Post{}, nil
	}

	videos, err := c.FetchVideos(ctx, token, limit)
	if err != nil {
		c.logger.Warn("tiktok fetch failed", zap.Error(err))
		c.metrics.FetchFailure(string(oauth.PlatformTikTok), "posts")
		return []aggregator.Post{}, nil
	}

	posts := make([]aggregator.Post, 0, len(videos))
	for _, v := range videos {
		posts = append(posts, v.Post())
	}
	c.metrics.PostsFetched(string(oauth.PlatformTikTok), len(posts))
	return posts, nil
}

// FetchVideos lists the authenticated user's videos, newest first.
func (c *Client) FetchVideos(ctx context.Context, token string, limit int) ([]Video, error) {
	if limit <= 0 {
		limit = aggregator.DefaultLimit
	}
	if limit > maxCount {
		limit = maxCount
	}

	payload, err := json.Marshal(map[string]int{"max_count": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := c.apiBaseURL + "/v2/video/list/?fields=" + url.QueryEscape(videoFields)
	body, err := c.doRequest(ctx, http.MethodPost, endpoint, token, payload)
	if err != nil {
		return nil, err
	}

	var resp videoListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse video list: %w", err)
	}

	videos := make([]Video, 0, len(resp.Data.Videos))
	for _, v := range resp.Data.Videos {
		videos = append(videos, Video{
			ID:           v.ID,
			Title:        v.Title,
			Description:  v.VideoDescription,
			CoverImage:   v.CoverImageURL,
			ShareURL:     v.ShareURL,
			LikeCount:    v.LikeCount,
			CommentCount: v.CommentCount,
			ViewCount:    v.ViewCount,
			CreatedAt:    aggregator.NormalizeUnix(v.CreateTime),
		})
	}
	return videos, nil
}

// FetchStats returns the follower count, or zero on any failure. The user
// object is read from data.user or, failing that, from a top-level user.
func (c *Client) FetchStats(ctx context.Context, cred *oauth.Credential) aggregator.Stats {
	stats := aggregator.Stats{Platform: oauth.PlatformTikTok}
	token := c.policy.EnsureValid(ctx, cred, c)
	if token == "" {
		return stats
	}

	endpoint := c.apiBaseURL + "/v2/user/info/?fields=" + url.QueryEscape(userFields)
	body, err := c.doRequest(ctx, http.MethodGet, endpoint, token, nil)
	if err != nil {
		c.logger.Warn("tiktok stats failed", zap.Error(err))
		c.metrics.FetchFailure(string(oauth.PlatformTikTok), "stats")
		return stats
	}

	var resp userInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return stats
	}
	switch {
	case resp.Data.User != nil:
		stats.Followers = resp.Data.User.FollowerCount
	case resp.User != nil:
		stats.Followers = resp.User.FollowerCount
	}
	return stats
}

func (c *Client) doRequest(ctx context.Context, method, endpoint, token string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if apiErr := ParseError(body); apiErr != nil {
		return nil, apiErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleAPIError(resp.StatusCode)
	}

	return body, nil
}

func (c *Client) handleAPIError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("TikTok API authentication failed - run 'creatorfeed connect tiktok'")
	case http.StatusForbidden:
		return fmt.Errorf("TikTok API access denied - check the app's approved scopes")
	case http.StatusTooManyRequests:
		return fmt.Errorf("TikTok API rate limit exceeded - please try again later")
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("TikTok API server error - please try again later")
	default:
		return fmt.Errorf("TikTok API error (status %d) - please try again", statusCode)
	}
}

// ParseError recognizes both TikTok error envelopes: the OAuth endpoint's
// top-level error/error_description strings, and the data endpoints' error
// object, which is present on success too with code "ok". It returns nil
// when the body reports no error.
func ParseError(body []byte) error {
	var env struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return nil
	}

	var code string
	if err := json.Unmarshal(env.Error, &code); err == nil {
		if code == "" {
			return nil
		}
		return &oauth.APIError{Platform: oauth.PlatformTikTok, Code: code, Message: env.ErrorDescription}
	}

	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		LogID   string `json:"log_id"`
	}
	if err := json.Unmarshal(env.Error, &obj); err != nil {
		return nil
	}
	if obj.Code == "" || strings.EqualFold(obj.Code, "ok") {
		return nil
	}
	return &oauth.APIError{Platform: oauth.PlatformTikTok, Code: obj.Code, Message: obj.Message}
}

// API response types (private - implementation detail)

type videoListResponse struct {
	Data struct {
		Videos []struct {
			ID               string `json:"id"`
			Title            string `json:"title"`
			VideoDescription string `json:"video_description"`
			CoverImageURL    string `json:"cover_image_url"`
			ShareURL         string `json:"share_url"`
			LikeCount        int64  `json:"like_count"`
			CommentCount     int64  `json:"comment_count"`
			ViewCount        int64  `json:"view_count"`
			CreateTime       int64  `json:"create_time"`
		} `json:"videos"`
		Cursor  int64 `json:"cursor"`
		HasMore bool  `json:"has_more"`
	} `json:"data"`
}

type userInfo struct {
	OpenID        string `json:"open_id"`
	DisplayName   string `json:"display_name"`
	FollowerCount int64  `json:"follower_count"`
}

type userInfoResponse struct {
	Data struct {
		User *userInfo `json:"user"`
	} `json:"data"`
	User *userInfo `json:"user"`
}
