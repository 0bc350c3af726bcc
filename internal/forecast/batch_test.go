package forecast

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
)

func nan() float64 { return math.NaN() }

func TestGetBatchForecast_IndependentResults(t *testing.T) {
	stub := newStub()
	// Norway's primary and the fallback are both down; the others are fine.
	stub.fail["metno-locationforecast"] = domain.Unavailable("metno-locationforecast", errors.New("503"))
	stub.fail["openmeteo-global"] = domain.Unavailable("openmeteo-global", errors.New("503"))
	svc, _ := newService(stub)

	locs := []domain.Location{longsPeak, galdhopiggen, {ID: "bad", Lat: 200, Lon: 0}}
	results, err := svc.GetBatchForecast(context.Background(), locs, 24)
	require.NoError(t, err)

	require.Len(t, results, 3)
	ok := results["longs-peak"]
	require.NoError(t, ok.Err)
	assert.Equal(t, 25, ok.Forecast.Series.Len())

	failed := results["galdhopiggen"]
	assert.Nil(t, failed.Forecast)
	require.ErrorIs(t, failed.Err, domain.ErrProviderUnavailable)

	assert.ErrorIs(t, results["bad"].Err, domain.ErrInvalidLocation)
}

func TestGetBatchForecast_InvalidHorizon(t *testing.T) {
	svc, _ := newService(newStub())

	_, err := svc.GetBatchForecast(context.Background(), []domain.Location{longsPeak}, 500)

	require.ErrorIs(t, err, domain.ErrInvalidHorizon)
}

func TestGetBatchForecast_KeysByCoordinatesWithoutID(t *testing.T) {
	svc, _ := newService(newStub())

	loc := domain.Location{Lat: 40.2549, Lon: -105.616}
	results, err := svc.GetBatchForecast(context.Background(), []domain.Location{loc}, 1)
	require.NoError(t, err)

	_, ok := results["40.2549,-105.6160"]
	assert.True(t, ok)
}

func TestInRequestOrder(t *testing.T) {
	svc, _ := newService(newStub())

	locs := []domain.Location{galdhopiggen, longsPeak, {Lat: 40.2549, Lon: -105.616}, galdhopiggen}
	results, err := svc.GetBatchForecast(context.Background(), locs, 1)
	require.NoError(t, err)

	var keys []string
	for _, r := range InRequestOrder(locs, results) {
		keys = append(keys, r.Location.Key())
	}
	want := []string{"galdhopiggen", "longs-peak", "40.2549,-105.6160"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("result order mismatch (-want +got):\n%s", diff)
	}
}

func TestGetSeveritySummary_NoDataIsNotSafe(t *testing.T) {
	stub := newStub()
	stub.answers["openmeteo-hrrr"] = constantHours(-5, 55)
	stub.fail["metno-locationforecast"] = domain.Unavailable("metno-locationforecast", errors.New("503"))
	stub.fail["openmeteo-global"] = domain.Unavailable("openmeteo-global", errors.New("503"))
	svc, _ := newService(stub)

	summary, err := svc.GetSeveritySummary(context.Background(), []domain.Location{longsPeak, galdhopiggen}, 6)
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Offset)
	assert.False(t, summary.Complete)
	require.NotNil(t, summary.WorstLevel)
	assert.Equal(t, domain.LevelDanger, *summary.WorstLevel)

	require.Len(t, summary.PerLocation, 2)
	assert.False(t, summary.PerLocation[0].NoData)
	require.NotNil(t, summary.PerLocation[0].Severity)
	assert.Equal(t, "openmeteo-hrrr", summary.PerLocation[0].Provider)

	assert.True(t, summary.PerLocation[1].NoData)
	assert.Nil(t, summary.PerLocation[1].Severity)
	assert.NotEmpty(t, summary.PerLocation[1].Error)
}

func TestGetSeveritySummary_AllFailedHasNoWorstLevel(t *testing.T) {
	stub := newStub()
	stub.fail["openmeteo-hrrr"] = domain.Unavailable("openmeteo-hrrr", errors.New("503"))
	stub.fail["openmeteo-global"] = domain.Unavailable("openmeteo-global", errors.New("503"))
	svc, _ := newService(stub)

	summary, err := svc.GetSeveritySummary(context.Background(), []domain.Location{longsPeak}, 0)
	require.NoError(t, err)

	assert.Nil(t, summary.WorstLevel, "no data must never read as safe")
	assert.False(t, summary.Complete)
}

func TestGetSeveritySummary_ShortSeriesIsNoData(t *testing.T) {
	stub := newStub()
	stub.answers["openmeteo-hrrr"] = func(req domain.FetchRequest) []domain.NormalizedHourlyForecast {
		return hours(req, 3, func(r *domain.NormalizedHourlyForecast) { r.Temperature = domain.Float(12) })
	}
	svc, _ := newService(stub)

	summary, err := svc.GetSeveritySummary(context.Background(), []domain.Location{longsPeak}, 10)
	require.NoError(t, err)

	assert.True(t, summary.PerLocation[0].NoData)
	assert.Contains(t, summary.PerLocation[0].Error, "no record")
	assert.Nil(t, summary.WorstLevel)
}

func TestGetSeveritySummary_AllSafe(t *testing.T) {
	stub := newStub()
	stub.answers["openmeteo-hrrr"] = func(req domain.FetchRequest) []domain.NormalizedHourlyForecast {
		return hours(req, req.Hours+1, func(r *domain.NormalizedHourlyForecast) {
			r.Temperature = domain.Float(15)
			r.WindSpeed = domain.Float(5)
			r.WindGust = domain.Float(10)
			r.PrecipProbability = domain.Float(0)
			r.Precipitation = domain.Float(0)
		})
	}
	svc, _ := newService(stub)

	summary, err := svc.GetSeveritySummary(context.Background(), []domain.Location{longsPeak}, 3)
	require.NoError(t, err)

	assert.True(t, summary.Complete)
	require.NotNil(t, summary.WorstLevel)
	assert.Equal(t, domain.LevelSafe, *summary.WorstLevel)
}
