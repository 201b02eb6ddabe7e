// Package weather provides current-conditions lookups against the wttr.in
// public API. The backend is stateless; it holds only the upstream URL and
// a shared HTTP client.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentfriend/agentfriend/internal/httpkit"
)

// DefaultBaseURL is the public wttr.in endpoint. It requires no API key.
const DefaultBaseURL = "https://wttr.in"

// Typed failures the dispatcher maps onto tool outcome reasons.
var (
	// ErrLocationNotFound indicates the upstream does not know the location.
	ErrLocationNotFound = errors.New("location not found")

	// ErrUpstreamUnavailable indicates a transport failure or upstream error.
	ErrUpstreamUnavailable = errors.New("weather service unavailable")
)

// Report is a normalized current-conditions report.
type Report struct {
	Location   string
	TempC      float64
	Conditions string
	Unit       string
}

// Client looks up weather reports.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a weather client. An empty baseURL selects the
// public wttr.in endpoint.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("backend", "weather"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15*time.Second),
			httpkit.WithRetry(2, 500*time.Millisecond),
			httpkit.WithLogger(logger),
		),
	}
}

// wttr.in ?format=j1 response, reduced to the fields we read.
type wttrResponse struct {
	CurrentCondition []struct {
		TempC       string `json:"temp_C"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

// Lookup fetches current conditions for a location.
func (c *Client) Lookup(ctx context.Context, location string) (*Report, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrLocationNotFound
	}

	reqURL := fmt.Sprintf("%s/%s?format=j1", c.baseURL, url.PathEscape(location))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		httpkit.DrainAndClose(resp.Body, 1024)
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
	case resp.StatusCode != http.StatusOK:
		body := httpkit.ReadErrorBody(resp.Body, 512)
		c.logger.Warn("upstream error", "status", resp.StatusCode, "body", body)
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var wr wttrResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstreamUnavailable, err)
	}
	if len(wr.CurrentCondition) == 0 {
		return nil, fmt.Errorf("%w: empty report for %s", ErrLocationNotFound, location)
	}

	cur := wr.CurrentCondition[0]
	var temp float64
	if _, err := fmt.Sscanf(cur.TempC, "%f", &temp); err != nil {
		return nil, fmt.Errorf("%w: bad temperature %q", ErrUpstreamUnavailable, cur.TempC)
	}

	conditions := ""
	if len(cur.WeatherDesc) > 0 {
		conditions = cur.WeatherDesc[0].Value
	}

	report := &Report{
		Location:   location,
		TempC:      temp,
		Conditions: conditions,
		Unit:       "C",
	}

	c.logger.Debug("lookup complete",
		"location", location,
		"temp_c", report.TempC,
		"conditions", report.Conditions,
	)

	return report, nil
}
