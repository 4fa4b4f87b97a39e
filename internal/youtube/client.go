package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	BaseURL = "https://www.googleapis.com/youtube/v3"

	// MaxIDsPerRequest is the videos.list id limit.
	MaxIDsPerRequest = 50
)

type Client struct {
	client  *resty.Client
	limiter *rate.Limiter
	APIKey  string
}

func NewClient(apiKey string, requestsPerSecond float64) *Client {
	c := resty.New()
	c.SetTimeout(15 * time.Second)
	c.SetBaseURL(BaseURL)
	c.SetQueryParam("key", apiKey)
	c.SetHeader("Accept", "application/json")
	c.SetRetryCount(2)
	c.SetRetryWaitTime(500 * time.Millisecond)
	c.AddRetryCondition(func(r *resty.Response, err error) bool {
		// quota errors are final, 5xx are worth another try
		return err != nil || r.StatusCode() >= 500
	})

	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}

	return &Client{
		client:  c,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		APIKey:  apiKey,
	}
}

// SetBaseURL points the client at another endpoint (tests, proxies).
func (c *Client) SetBaseURL(u string) {
	c.client.SetBaseURL(u)
}

// APIError is a non-2xx answer from the Data API.
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube api %d (%s): %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("youtube api %d: %s", e.Status, e.Message)
}

// IsQuotaExceeded reports whether err is the daily quota error. Retrying the
// same day is pointless once this happens.
func IsQuotaExceeded(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Reason == "quotaExceeded" || apiErr.Reason == "dailyLimitExceeded"
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return parseAPIError(resp.StatusCode(), resp.Body())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func parseAPIError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		apiErr.Message = payload.Error.Message
		if len(payload.Error.Errors) > 0 {
			apiErr.Reason = payload.Error.Errors[0].Reason
		}
	}
	return apiErr
}

// GetChannel fetches snippet, statistics and the uploads playlist of a channel.
// Returns nil, nil when the channel does not exist.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var result struct {
		Items []Channel `json:"items"`
	}
	err := c.get(ctx, "/channels", map[string]string{
		"part": "snippet,statistics,contentDetails",
		"id":   channelID,
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, nil // Not found
	}
	return &result.Items[0], nil
}

// ListPlaylistItems returns one page (up to 50) of a playlist.
func (c *Client) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (*PlaylistItemsPage, error) {
	params := map[string]string{
		"part":       "snippet,contentDetails",
		"playlistId": playlistID,
		"maxResults": "50",
	}
	if pageToken != "" {
		params["pageToken"] = pageToken
	}
	var page PlaylistItemsPage
	if err := c.get(ctx, "/playlistItems", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetVideos fetches details for up to MaxIDsPerRequest videos.
func (c *Client) GetVideos(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxIDsPerRequest {
		return nil, fmt.Errorf("GetVideos: %d ids exceeds limit of %d", len(ids), MaxIDsPerRequest)
	}
	var result struct {
		Items []Video `json:"items"`
	}
	err := c.get(ctx, "/videos", map[string]string{
		"part": "snippet,contentDetails,statistics",
		"id":   strings.Join(ids, ","),
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// SearchChannelVideos runs a keyword search inside one channel, newest first.
func (c *Client) SearchChannelVideos(ctx context.Context, channelID, query string, max int) ([]string, error) {
	if max <= 0 || max > 50 {
		max = 50
	}
	var result struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	err := c.get(ctx, "/search", map[string]string{
		"part":       "id",
		"channelId":  channelID,
		"q":          query,
		"type":       "video",
		"order":      "date",
		"maxResults": fmt.Sprintf("%d", max),
	}, &result)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.Items))
	for _, it := range result.Items {
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}
	return ids, nil
}
