package garmin

import (
	"context"
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

const streamTypes = "GPS,HEARTRATE,CADENCE,POWER,SPEED,ALTITUDE"

type Config struct {
	BaseURL string
}

// Client is the Garmin Connect provider adapter. Garmin pages by offset
// rather than page number.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		logger:     logger.With("provider", domain.ProviderGarmin),
	}
}

func (c *Client) Provider() domain.Provider {
	return domain.ProviderGarmin
}

func (c *Client) ListActivities(ctx context.Context, token string, after time.Time, page, perPage int) ([]domain.RemoteActivity, error) {
	if page < 1 {
		page = 1
	}

	q := url.Values{}
	q.Set("start", strconv.FormatInt(after.Unix(), 10))
	q.Set("limit", strconv.Itoa(perPage))
	q.Set("offset", strconv.Itoa((page-1)*perPage))

	var items []json.RawMessage
	if err := c.get(ctx, token, "/activities", q, &items); err != nil {
		return nil, err
	}

	activities := make([]domain.RemoteActivity, 0, len(items))
	for _, item := range items {
		var head struct {
			ActivityID json.Number `json:"activityId"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			c.logger.Warn("unreadable activity id", "error", err)
		}
		activities = append(activities, domain.RemoteActivity{
			Provider: domain.ProviderGarmin,
			SourceID: head.ActivityID.String(),
			Payload:  item,
		})
	}

	c.logger.Debug("fetched page",
		"page", page,
		"activities", len(activities),
	)

	return activities, nil
}

func (c *Client) GetSamples(ctx context.Context, token string, remote domain.RemoteActivity, activityID string) ([]domain.Sample, error) {
	q := url.Values{}
	q.Set("types", streamTypes)

	var streams map[string]Stream
	if err := c.get(ctx, token, "/activities/"+url.PathEscape(remote.SourceID)+"/streams", q, &streams); err != nil {
		return nil, err
	}

	return mergeStreams(activityID, streams)
}

func (c *Client) get(ctx context.Context, token, path string, q url.Values, out any) error {
	u := c.baseURL + path + "?" + q.Encode()

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
