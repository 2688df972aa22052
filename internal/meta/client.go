// Package meta provides a client for the Facebook Graph API covering both
// Facebook pages and the Instagram business accounts linked to them.
//
// This package enables creatorfeed to:
// - Discover the creator's pages and their Instagram business accounts
// - Fetch Instagram media and Facebook page posts independently
// - Upgrade a short-lived user token to a long-lived one
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gauthierbraillon/creatorfeed/internal/metrics"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

const (
	// GraphVersion is the Graph API version every call is pinned to.
	GraphVersion = "v18.0"

	defaultGraphURL  = "https://graph.facebook.com"
	defaultDialogURL = "https://www.facebook.com"

	pageFields = "id,name,access_token,followers_count,instagram_business_account{id,username,followers_count}"
)

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

// WithBaseURL sets a custom Graph API base URL (useful for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.graphURL = strings.TrimRight(u, "/")
	}
}

// WithDialogURL sets a custom OAuth dialog host (useful for testing).
func WithDialogURL(u string) ClientOption {
	return func(c *Client) {
		c.dialogURL = strings.TrimRight(u, "/")
	}
}

// WithFallbackPageID sets the page fetched directly when the account
// listing comes back empty.
func WithFallbackPageID(id string) ClientOption {
	return func(c *Client) {
		c.fallbackPageID = id
	}
}

// WithTargetHandle selects the page whose ID, name or Instagram username
// matches handle. Without a match the first page is used.
func WithTargetHandle(handle string) ClientOption {
	return func(c *Client) {
		c.targetHandle = handle
	}
}

// WithPolicy sets the token policy applied before every data call.
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

// Client is a Graph API client shared by the Facebook and Instagram views.
type Client struct {
	graphURL       string
	dialogURL      string
	fallbackPageID string
	targetHandle   string
	httpClient     HTTPClient
	policy         *oauth.Policy
	now            func() time.Time
	logger         *zap.Logger
	metrics        *metrics.Recorder
}

// NewClient creates a new Graph API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		graphURL:   defaultGraphURL,
		dialogURL:  defaultDialogURL,
		httpClient: &http.Client{},
		now:        time.Now,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.policy == nil {
		c.policy = oauth.NewPolicy(oauth.WithClock(c.now), oauth.WithLogger(c.logger))
	}

	return c
}

// Pages lists the pages the token can manage, with their linked Instagram
// business accounts. An empty listing falls back to a direct fetch of the
// configured page.
func (c *Client) Pages(ctx context.Context, token string) ([]Page, error) {
	params := url.Values{}
	params.Set("fields", pageFields)

	body, err := c.doRequest(ctx, "/me/accounts", token, params)
	if err != nil {
		return nil, err
	}

	var resp accountsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}

	if len(resp.Data) > 0 {
		pages := make([]Page, 0, len(resp.Data))
		for _, p := range resp.Data {
			pages = append(pages, p.page())
		}
		return pages, nil
	}

	if c.fallbackPageID == "" {
		return []Page{}, nil
	}

	c.logger.Info("no pages listed, fetching fallback page", zap.String("page_id", c.fallbackPageID))
	body, err = c.doRequest(ctx, "/"+url.PathEscape(c.fallbackPageID), token, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fallback page: %w", err)
	}

	var fallback pageNode
	if err := json.Unmarshal(body, &fallback); err != nil {
		return nil, fmt.Errorf("failed to parse fallback page: %w", err)
	}
	if fallback.ID == "" {
		return []Page{}, nil
	}
	return []Page{fallback.page()}, nil
}

// TargetPage picks the page matching the configured handle, or the first
// page. ok is false when pages is empty.
func (c *Client) TargetPage(pages []Page) (page Page, ok bool) {
	if len(pages) == 0 {
		return Page{}, false
	}
	handle := strings.TrimPrefix(strings.TrimSpace(c.targetHandle), "@")
	if handle != "" {
		for _, p := range pages {
			if p.Matches(handle) {
				return p, true
			}
		}
	}
	return pages[0], true
}

func (c *Client) resolvePage(ctx context.Context, token string) (Page, bool, error) {
	pages, err := c.Pages(ctx, token)
	if err != nil {
		return Page{}, false, err
	}
	page, ok := c.TargetPage(pages)
	return page, ok, nil
}

// FetchInstagramMedia lists recent media of the target page's Instagram
// business account. A page without one yields no media.
func (c *Client) FetchInstagramMedia(ctx context.Context, token string, limit int) ([]Media, error) {
	page, ok, err := c.resolvePage(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok || page.Instagram == nil {
		return []Media{}, nil
	}

	params := url.Values{}
	params.Set("fields", "id,caption,media_type,media_url,thumbnail_url,permalink,timestamp,like_count,comments_count")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doRequest(ctx, "/"+page.Instagram.ID+"/media", token, params)
	if err != nil {
		return nil, err
	}

	var resp mediaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse media: %w", err)
	}

	media := make([]Media, 0, len(resp.Data))
	for _, m := range resp.Data {
		media = append(media, Media{
			ID:           m.ID,
			Caption:      m.Caption,
			MediaType:    m.MediaType,
			MediaURL:     m.MediaURL,
			ThumbnailURL: m.ThumbnailURL,
			Permalink:    m.Permalink,
			Timestamp:    m.Timestamp,
			LikeCount:    m.LikeCount,
			CommentCount: m.CommentsCount,
		})
	}
	return media, nil
}

// FetchPagePosts lists recent posts of the target page, using the page
// access token when the listing provided one.
func (c *Client) FetchPagePosts(ctx context.Context, token string, limit int) ([]PagePost, error) {
	page, ok, err := c.resolvePage(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []PagePost{}, nil
	}
	if page.AccessToken != "" {
		token = page.AccessToken
	}

	params := url.Values{}
	params.Set("fields", "id,message,created_time,full_picture,permalink_url,reactions.summary(total_count),comments.summary(total_count)")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doRequest(ctx, "/"+page.ID+"/posts", token, params)
	if err != nil {
		return nil, err
	}

	var resp pagePostsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse page posts: %w", err)
	}

	posts := make([]PagePost, 0, len(resp.Data))
	for _, p := range resp.Data {
		posts = append(posts, PagePost{
			ID:           p.ID,
			Message:      p.Message,
			CreatedTime:  p.CreatedTime,
			Picture:      p.FullPicture,
			Permalink:    p.PermalinkURL,
			Reactions:    p.Reactions.Summary.TotalCount,
			CommentCount: p.Comments.Summary.TotalCount,
		})
	}
	return posts, nil
}

func (c *Client) doRequest(ctx context.Context, path, token string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if token != "" {
		params.Set("access_token", token)
	}
	endpoint := c.graphURL + "/" + GraphVersion + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
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
			if e, ok := apiErr.(*oauth.APIError); ok {
				e.Status = resp.StatusCode
			}
			return nil, apiErr
		}
		return nil, c.handleAPIError(resp.StatusCode)
	}

	return body, nil
}

func (c *Client) handleAPIError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("Graph API authentication failed - run 'creatorfeed connect facebook'")
	case http.StatusForbidden:
		return fmt.Errorf("Graph API access denied - check the granted page permissions")
	case http.StatusNotFound:
		return fmt.Errorf("Graph API object not found - check the configured page ID")
	case http.StatusTooManyRequests:
		return fmt.Errorf("Graph API rate limit exceeded - please try again later")
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("Graph API server error - please try again later")
	default:
		return fmt.Errorf("Graph API error (status %d) - please try again", statusCode)
	}
}

// ParseError extracts the Graph API envelope
// {"error":{"message","type","code","error_subcode","fbtrace_id"}}.
// It returns nil when body is not an error envelope.
func ParseError(body []byte) error {
	var env struct {
		Error *struct {
			Message      string `json:"message"`
			Type         string `json:"type"`
			Code         int    `json:"code"`
			ErrorSubcode int    `json:"error_subcode"`
			FBTraceID    string `json:"fbtrace_id"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil
	}

	code := env.Error.Type
	if env.Error.Code != 0 {
		code = strconv.Itoa(env.Error.Code)
		if env.Error.ErrorSubcode != 0 {
			code += "/" + strconv.Itoa(env.Error.ErrorSubcode)
		}
	}
	return &oauth.APIError{
		Platform: oauth.PlatformFacebook,
		Code:     code,
		Message:  env.Error.Message,
	}
}

// API response types (private - implementation detail)

type pageNode struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AccessToken    string `json:"access_token"`
	FollowersCount int64  `json:"followers_count"`
	Instagram      *struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		FollowersCount int64  `json:"followers_count"`
	} `json:"instagram_business_account"`
}

func (n pageNode) page() Page {
	p := Page{
		ID:          n.ID,
		Name:        n.Name,
		AccessToken: n.AccessToken,
		Followers:   n.FollowersCount,
	}
	if n.Instagram != nil && n.Instagram.ID != "" {
		p.Instagram = &InstagramAccount{
			ID:        n.Instagram.ID,
			Username:  n.Instagram.Username,
			Followers: n.Instagram.FollowersCount,
		}
	}
	return p
}

type accountsResponse struct {
	Data []pageNode `json:"data"`
}

type mediaResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Caption       string `json:"caption"`
		MediaType     string `json:"media_type"`
		MediaURL      string `json:"media_url"`
		ThumbnailURL  string `json:"thumbnail_url"`
		Permalink     string `json:"permalink"`
		Timestamp     string `json:"timestamp"`
		LikeCount     int64  `json:"like_count"`
		CommentsCount int64  `json:"comments_count"`
	} `json:"data"`
}

type summaryCount struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

type pagePostsResponse struct {
	Data []struct {
		ID           string       `json:"id"`
		Message      string       `json:"message"`
		CreatedTime  string       `json:"created_time"`
		FullPicture  string       `json:"full_picture"`
		PermalinkURL string       `json:"permalink_url"`
		Reactions    summaryCount `json:"reactions"`
		Comments     summaryCount `json:"comments"`
	} `json:"data"`
}
