package openmeteo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var testNow = time.Date(2026, time.October, 16, 9, 20, 0, 0, time.UTC)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func hrrr() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:                 "openmeteo-hrrr",
		Kind:               Kind,
		Model:              "gfs_hrrr",
		ResolutionKm:       3,
		ElevationSemantics: domain.GridAverage,
	}
}

func fetchRequest(d domain.ProviderDescriptor, hours int) domain.FetchRequest {
	return domain.FetchRequest{
		Descriptor:      d,
		Location:        domain.Location{Lat: 40.2549, Lon: -105.6160},
		TargetElevation: domain.Float(3048),
		Hours:           hours,
		Now:             testNow,
	}
}

// hourlyPayload builds a response whose first timestamp is the hour before
// testNow, so the adapter has one stale record to drop.
func hourlyPayload(n int, extra string) string {
	first := testNow.Truncate(time.Hour).Add(-time.Hour).Unix()
	times := make([]string, n)
	temps := make([]string, n)
	winds := make([]string, n)
	nulls := make([]string, n)
	for i := 0; i < n; i++ {
		times[i] = fmt.Sprint(first + int64(i)*3600)
		temps[i] = fmt.Sprintf("%.1f", -13+float64(i)*0.5)
		winds[i] = "22.5"
		nulls[i] = "null"
	}
	return fmt.Sprintf(`{
		"latitude": 40.25, "longitude": -105.62, "elevation": 4043,
		"timezone": "America/Denver", "utc_offset_seconds": -21600,
		"hourly": {
			"time": [%s],
			"temperature_2m": [%s],
			"wind_speed_10m": [%s],
			"cape": [%s]%s
		}
	}`, strings.Join(times, ","), strings.Join(temps, ","), strings.Join(winds, ","), strings.Join(nulls, ","), extra)
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "40.2549", q.Get("latitude"))
		assert.Equal(t, "-105.6160", q.Get("longitude"))
		assert.Equal(t, "gfs_hrrr", q.Get("models"))
		assert.Equal(t, "4", q.Get("forecast_hours"))
		assert.Equal(t, "nan", q.Get("elevation"), "grid-average providers must not be downscaled upstream")
		assert.Equal(t, "unixtime", q.Get("timeformat"))
		assert.Equal(t, "kmh", q.Get("wind_speed_unit"))
		assert.Contains(t, q.Get("hourly"), "freezing_level_height")

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, hourlyPayload(5, ""))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	res, err := c.Fetch(context.Background(), fetchRequest(hrrr(), 3))
	require.NoError(t, err)

	assert.Equal(t, "openmeteo-hrrr", res.Provider)
	assert.Equal(t, "America/Denver", res.Timezone)
	require.Len(t, res.Records, 4, "stale hour dropped, offsets 0..3 kept")
	for i, r := range res.Records {
		assert.Equal(t, i, r.Offset)
		require.NotNil(t, r.ReferenceElevation)
		assert.InDelta(t, 4043.0, *r.ReferenceElevation, 1e-9)
	}
	assert.InDelta(t, -12.5, *res.Records[0].Temperature, 1e-9)
	assert.InDelta(t, 22.5, *res.Records[0].WindSpeed, 1e-9)
	assert.Nil(t, res.Records[0].ConvectiveEnergy)
	assert.Equal(t, domain.ProvenanceMissing, res.Records[0].Provenance[domain.FieldConvectiveEnergy])
	assert.Equal(t, domain.ProvenanceNative, res.Records[0].Provenance[domain.FieldTemperature])

	assert.True(t, res.Missing.Has(domain.FieldConvectiveEnergy), "all-null column is missing")
	assert.True(t, res.Missing.Has(domain.FieldFreezingLevel), "absent column is missing")
	assert.False(t, res.Missing.Has(domain.FieldWindSpeed))

	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.ProviderRequests.WithLabelValues("openmeteo-hrrr", "success")), 1e-9)
}

func TestClient_Fetch_PointCorrectedPassesTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3048", r.URL.Query().Get("elevation"))
		_, _ = io.WriteString(w, hourlyPayload(3, ""))
	}))
	defer srv.Close()

	d := hrrr()
	d.ElevationSemantics = domain.PointCorrected
	_, err := testClient(srv.URL).Fetch(context.Background(), fetchRequest(d, 1))
	require.NoError(t, err)
}

func TestClient_Fetch_ShortAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, hourlyPayload(41, ""))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Fetch(context.Background(), fetchRequest(hrrr(), 72))
	require.NoError(t, err)

	assert.Len(t, res.Records, 40, "a short upstream answer is not padded")
}

func TestClient_Fetch_ServerError(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			c := testClient(srv.URL)
			_, err := c.Fetch(context.Background(), fetchRequest(hrrr(), 3))
			require.ErrorIs(t, err, domain.ErrProviderUnavailable)
			assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.ProviderRequests.WithLabelValues("openmeteo-hrrr", "unavailable")), 1e-9)
		})
	}
}

func TestClient_Fetch_BadRequestIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":true,"reason":"Invalid model"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), fetchRequest(hrrr(), 3))
	require.ErrorIs(t, err, domain.ErrProviderDataMalformed)
	assert.Contains(t, err.Error(), "Invalid model")
}

func TestClient_Fetch_MalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>maintenance</html>`},
		{"no hourly", `{"latitude": 1, "longitude": 2}`},
		{"no time", `{"hourly": {"temperature_2m": [1, 2]}}`},
		{"length mismatch", `{"hourly": {"time": [1, 2, 3], "temperature_2m": [1, 2]}}`},
		{"no temperature", `{"hourly": {"time": [1, 2], "temperature_2m": [null, null]}}`},
		{"error flag", `{"error": true, "reason": "Latitude must be in range"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := testClient(srv.URL)
			_, err := c.Fetch(context.Background(), fetchRequest(hrrr(), 3))
			require.ErrorIs(t, err, domain.ErrProviderDataMalformed)
			assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.ProviderRequests.WithLabelValues("openmeteo-hrrr", "malformed")), 1e-9)
		})
	}
}

func TestClient_Fetch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, hourlyPayload(3, ""))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).Fetch(ctx, fetchRequest(hrrr(), 3))
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestClient_Fetch_PartialNullsStayNull(t *testing.T) {
	extra := `, "snowfall": [null, 0, 1.4, null, 0]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, hourlyPayload(5, extra))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Fetch(context.Background(), fetchRequest(hrrr(), 3))
	require.NoError(t, err)

	require.Len(t, res.Records, 4)
	require.NotNil(t, res.Records[0].Snowfall)
	assert.InDelta(t, 0.0, *res.Records[0].Snowfall, 1e-9, "zero snowfall is a value")
	assert.InDelta(t, 1.4, *res.Records[1].Snowfall, 1e-9)
	assert.Nil(t, res.Records[2].Snowfall)
	assert.False(t, res.Missing.Has(domain.FieldSnowfall))
}

func TestClient_Fetch_StampsProvenanceFromColumns(t *testing.T) {
	extra := `, "snowfall": [null, 0, 1.4, null, 0], "weather_code": [3, 3, 95, 95, 2]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, hourlyPayload(5, extra))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Fetch(context.Background(), fetchRequest(hrrr(), 3))
	require.NoError(t, err)
	require.Len(t, res.Records, 4)

	tests := []struct {
		field domain.Field
		want  []domain.Provenance
	}{
		{domain.FieldTemperature, []domain.Provenance{domain.ProvenanceNative, domain.ProvenanceNative, domain.ProvenanceNative, domain.ProvenanceNative}},
		{domain.FieldSnowfall, []domain.Provenance{domain.ProvenanceNative, domain.ProvenanceNative, domain.ProvenanceMissing, domain.ProvenanceNative}},
		{domain.FieldConvectiveEnergy, []domain.Provenance{domain.ProvenanceMissing, domain.ProvenanceMissing, domain.ProvenanceMissing, domain.ProvenanceMissing}},
		{domain.FieldCloudBase, []domain.Provenance{domain.ProvenanceMissing, domain.ProvenanceMissing, domain.ProvenanceMissing, domain.ProvenanceMissing}},
	}
	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			for i, rec := range res.Records {
				assert.Equal(t, tt.want[i], rec.FieldProvenance(tt.field), "record %d", i)
				assert.Len(t, rec.Provenance, len(domain.Fields))
			}
		})
	}
	require.NotNil(t, res.Records[1].WeatherCode)
	assert.Equal(t, 95, *res.Records[1].WeatherCode)
}
