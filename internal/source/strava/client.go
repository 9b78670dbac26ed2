package strava

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"fitsync/internal/domain"
	"fitsync/internal/transport"
)

const streamKeys = "time,latlng,altitude,heartrate,cadence,watts,velocity_smooth,grade_smooth"

// Config holds Strava API configuration.
type Config struct {
	BaseURL string
}

// Client is the Strava provider adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New creates a Strava client. httpClient is expected to carry the retrying
// transport.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		logger:     logger.With("provider", domain.ProviderStrava),
	}
}

func (c *Client) Provider() domain.Provider {
	return domain.ProviderStrava
}

// ListActivities fetches one page of activities started after the given time.
func (c *Client) ListActivities(ctx context.Context, token string, after time.Time, page, perPage int) ([]domain.RemoteActivity, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatInt(after.Unix(), 10))
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var items []json.RawMessage
	if err := c.get(ctx, token, "/athlete/activities", q, &items); err != nil {
		return nil, err
	}

	activities := make([]domain.RemoteActivity, 0, len(items))
	for _, item := range items {
		var head struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			c.logger.Warn("unreadable activity id", "error", err)
		}
		activities = append(activities, domain.RemoteActivity{
			Provider: domain.ProviderStrava,
			SourceID: head.ID.String(),
			Payload:  item,
		})
	}

	c.logger.Debug("fetched page",
		"page", page,
		"activities", len(activities),
	)

	return activities, nil
}

// GetSamples fetches and merges the detail streams of an activity.
// Activities without streams (manual entries) yield no samples.
func (c *Client) GetSamples(ctx context.Context, token string, remote domain.RemoteActivity, activityID string) ([]domain.Sample, error) {
	q := url.Values{}
	q.Set("keys", streamKeys)
	q.Set("key_by_type", "true")

	var set StreamSet
	err := c.get(ctx, token, "/activities/"+url.PathEscape(remote.SourceID)+"/streams", q, &set)
	if err != nil {
		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	return mergeStreams(activityID, set)
}

func (c *Client) get(ctx context.Context, token, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "fitsync/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := transport.CheckResponse(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
