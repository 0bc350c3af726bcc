// Package openmeteo adapts the Open-Meteo forecast API to the canonical
// hourly schema. One client serves every descriptor of kind "openmeteo";
// the descriptor's model name selects the upstream model.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/observability"
)

// Kind is the descriptor kind served by this adapter.
const Kind = "openmeteo"

const defaultBaseURL = "https://api.open-meteo.com/v1/forecast"

var hourlyVariables = []string{
	"temperature_2m",
	"dew_point_2m",
	"relative_humidity_2m",
	"wind_speed_10m",
	"wind_gusts_10m",
	"wind_direction_10m",
	"precipitation_probability",
	"precipitation",
	"snowfall",
	"cloud_cover",
	"freezing_level_height",
	"weather_code",
	"cape",
}

// Client implements domain.Provider using the Open-Meteo forecast API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an Open-Meteo client. An empty baseURL uses the public API.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch requests req.Hours+1 hourly records starting at the current hour.
func (c *Client) Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	id := req.Descriptor.ID
	start := time.Now()
	result, err := c.fetch(ctx, req)
	c.metrics.ProviderDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
	c.metrics.ProviderRequests.WithLabelValues(id, outcome(err)).Inc()
	return result, err
}

func (c *Client) fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	id := req.Descriptor.ID
	body, err := c.doRequest(ctx, c.buildURL(req), id)
	if err != nil {
		return domain.FetchResult{}, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.FetchResult{}, domain.Malformed(id, fmt.Errorf("decode response: %w", err))
	}
	if resp.Error {
		return domain.FetchResult{}, domain.Malformed(id, fmt.Errorf("api error: %s", resp.Reason))
	}

	records, missing, err := resp.normalize(req)
	if err != nil {
		return domain.FetchResult{}, domain.Malformed(id, err)
	}

	c.logger.Debug("open-meteo forecast fetched",
		"provider", id,
		"model", req.Descriptor.Model,
		"records", len(records),
		"missing", missing.Sorted(),
	)
	return domain.FetchResult{
		Provider: id,
		Records:  records,
		Missing:  missing,
		Timezone: resp.Timezone,
	}, nil
}

func (c *Client) buildURL(req domain.FetchRequest) string {
	params := url.Values{
		"latitude":        {strconv.FormatFloat(req.Location.Lat, 'f', 4, 64)},
		"longitude":       {strconv.FormatFloat(req.Location.Lon, 'f', 4, 64)},
		"hourly":          {strings.Join(hourlyVariables, ",")},
		"forecast_hours":  {strconv.Itoa(req.Hours + 1)},
		"timeformat":      {"unixtime"},
		"timezone":        {"auto"},
		"wind_speed_unit": {"kmh"},
	}
	if req.Descriptor.Model != "" {
		params.Set("models", req.Descriptor.Model)
	}
	// Open-Meteo downscales to the elevation parameter when given one. A
	// GRID_AVERAGE descriptor must see raw grid output, so "nan" disables it
	// and the response elevation is the grid cell's own.
	switch {
	case req.Descriptor.ElevationSemantics == domain.GridAverage:
		params.Set("elevation", "nan")
	case req.TargetElevation != nil:
		params.Set("elevation", strconv.FormatFloat(*req.TargetElevation, 'f', 0, 64))
	}
	return c.baseURL + "?" + params.Encode()
}

func (c *Client) doRequest(ctx context.Context, fullURL, provider string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Unavailable(provider, fmt.Errorf("forecast request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Unavailable(provider, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, domain.Unavailable(provider, fmt.Errorf("open-meteo API error: status %d", resp.StatusCode))
	default:
		return nil, domain.Malformed(provider, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, truncate(body, 200)))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrProviderDataMalformed):
		return "malformed"
	default:
		return "unavailable"
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
