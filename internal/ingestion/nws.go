package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/config"
)

// FeedItem is one alert record as returned by the feed.
type FeedItem struct {
	SourceID    string
	Event       string
	Headline    string
	Description string
	Severity    string
	Area        string
}

type nwsResponse struct {
	Features []json.RawMessage `json:"features"`
}

type nwsFeature struct {
	ID         string        `json:"id"`
	Properties nwsProperties `json:"properties"`
}

type nwsProperties struct {
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	AreaDesc    string `json:"areaDesc"`
}

// NWSClient fetches active alerts from the National Weather Service API.
type NWSClient struct {
	url        string
	area       string
	userAgent  string
	client     *http.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

func NewNWSClient(cfg config.FeedConfig) *NWSClient {
	return &NWSClient{
		url:        cfg.URL,
		area:       cfg.Area,
		userAgent:  cfg.UserAgent,
		client:     &http.Client{Timeout: cfg.Timeout},
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Fetch returns the active alerts, retrying failed requests up to maxRetries
// times with a fixed delay between attempts.
func (c *NWSClient) Fetch(ctx context.Context) ([]FeedItem, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying feed fetch", "attempt", attempt, "max_retries", c.maxRetries, "delay", c.retryDelay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		items, err := c.fetchOnce(ctx)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("feed fetch failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *NWSClient) fetchOnce(ctx context.Context) ([]FeedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("error parsing feed url: %w", err)
	}
	if c.area != "" {
		q := u.Query()
		q.Set("area", c.area)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data nwsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	items := make([]FeedItem, 0, len(data.Features))
	for i, raw := range data.Features {
		var f nwsFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			// Keep the slot so the ingestor counts and skips it.
			slog.Warn("unparseable feed record", "index", i, "error", err)
			items = append(items, FeedItem{})
			continue
		}
		items = append(items, FeedItem{
			SourceID:    f.ID,
			Event:       f.Properties.Event,
			Headline:    f.Properties.Headline,
			Description: f.Properties.Description,
			Severity:    f.Properties.Severity,
			Area:        f.Properties.AreaDesc,
		})
	}

	return items, nil
}
