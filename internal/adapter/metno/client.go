// Package metno adapts the MET Norway Locationforecast 2.0 API to the
// canonical hourly schema.
//
// Locationforecast is queried with the target altitude and returns
// temperatures already corrected to it, so descriptors served here are
// POINT_CORRECTED. It does not publish freezing level, convective energy or
// snowfall; those are reported as missing for supplementation.
package metno

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/observability"
)

// Kind is the descriptor kind served by this adapter.
const Kind = "metno"

const defaultBaseURL = "https://api.met.no/weatherapi/locationforecast/2.0/complete"

// msToKmh converts the API's m/s wind speeds to km/h.
const msToKmh = 3.6

var unsupported = []domain.Field{
	domain.FieldSnowfall,
	domain.FieldCloudBase,
	domain.FieldFreezingLevel,
	domain.FieldConvectiveEnergy,
}

// Client implements domain.Provider using MET Norway Locationforecast.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Locationforecast client. userAgent must identify the
// caller; the API rejects anonymous requests with 403.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		userAgent: userAgent,
		logger:    logger,
		metrics:   metrics,
	}
}

// Fetch requests the forecast for req.Location at the target altitude.
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

	records, err := resp.normalize(req)
	if err != nil {
		return domain.FetchResult{}, domain.Malformed(id, err)
	}

	missing := domain.MissingFields(records, domain.Fields)
	for _, f := range unsupported {
		missing.Add(f)
	}

	c.logger.Debug("met norway forecast fetched",
		"provider", id,
		"records", len(records),
		"missing", missing.Sorted(),
	)
	return domain.FetchResult{
		Provider: id,
		Records:  records,
		Missing:  missing,
	}, nil
}

func (c *Client) buildURL(req domain.FetchRequest) string {
	// The API caps coordinate precision at four decimals and caches on it.
	params := url.Values{
		"lat": {strconv.FormatFloat(req.Location.Lat, 'f', 4, 64)},
		"lon": {strconv.FormatFloat(req.Location.Lon, 'f', 4, 64)},
	}
	if req.TargetElevation != nil {
		params.Set("altitude", strconv.Itoa(int(math.Round(*req.TargetElevation))))
	}
	return c.baseURL + "?" + params.Encode()
}

func (c *Client) doRequest(ctx context.Context, fullURL, provider string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
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
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNonAuthoritativeInfo:
		// 203 flags a deprecated product version but still carries data.
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, domain.Unavailable(provider, fmt.Errorf("met norway API error: status %d", resp.StatusCode))
	default:
		return nil, domain.Malformed(provider, fmt.Errorf("met norway API error: status %d", resp.StatusCode))
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
