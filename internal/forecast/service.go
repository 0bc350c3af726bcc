// Package forecast assembles hazard forecasts: it selects a provider for a
// location, fetches with fallback, fills gaps from the fallback model,
// corrects for elevation, derives metrics and classifies every hour.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/observability"
)

// Fallback reasons recorded on degraded series and in metrics.
const (
	ReasonNoDedicatedProvider = "no_dedicated_provider"
	ReasonPrimaryFailed       = "primary_failed"
)

// Options tunes request limits.
type Options struct {
	MaxHorizonHours  int
	BatchConcurrency int
}

// Service implements the forecast query operations.
type Service struct {
	table    *domain.ProviderTable
	provider domain.Provider
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates a forecast service. provider receives every fetch and
// dispatches on the descriptor; in production it is the adapter registry.
func NewService(table *domain.ProviderTable, provider domain.Provider, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.MaxHorizonHours <= 0 {
		opts.MaxHorizonHours = domain.Next7Days.Hours
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 1
	}
	return &Service{
		table:    table,
		provider: provider,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Table returns the provider descriptor table in use.
func (s *Service) Table() *domain.ProviderTable { return s.table }

// Forecast is the result of one location query.
type Forecast struct {
	Series     *domain.ForecastTimeSeries `json:"series"`
	Severities []domain.SeverityResult    `json:"severities"`
	Days       []domain.DailySummary      `json:"days"`
}

// GetForecast returns the hourly series for loc and a severity result per
// hour. elevation overrides loc.Elevation as the correction target; with
// neither set no correction is applied.
func (s *Service) GetForecast(ctx context.Context, loc domain.Location, elevation *float64, hours int) (*Forecast, error) {
	if err := s.validate(loc, hours); err != nil {
		return nil, err
	}
	target := elevation
	if target == nil {
		target = loc.Elevation
	}
	if target != nil && (math.IsNaN(*target) || math.IsInf(*target, 0)) {
		return nil, fmt.Errorf("%w: target elevation is not finite", domain.ErrInvalidLocation)
	}

	region := loc.Region
	if region == "" {
		region = s.table.ResolveRegion(loc.Lat, loc.Lon)
		loc.Region = region
	}
	primary := s.table.Select(region)
	fallback := s.table.Fallback()

	meta := domain.SeriesMeta{
		Location:        loc,
		Provider:        primary,
		TargetElevation: target,
		RequestedHours:  hours,
		GeneratedAt:     domain.Now(),
	}
	if primary.Fallback {
		meta.Degraded = true
		meta.FallbackReason = fmt.Sprintf("%s: no provider configured for region %s", ReasonNoDedicatedProvider, region)
		s.metrics.Fallbacks.WithLabelValues(ReasonNoDedicatedProvider).Inc()
	}

	req := domain.FetchRequest{
		Descriptor:      primary,
		Location:        loc,
		TargetElevation: target,
		Hours:           hours,
		Now:             meta.GeneratedAt,
	}

	res, err := s.provider.Fetch(ctx, req)
	if err != nil {
		if primary.Fallback || !domain.IsProviderFailure(err) {
			return nil, fmt.Errorf("forecast %s: %w", loc.Key(), err)
		}
		s.logger.Warn("primary provider failed, using fallback",
			"provider", primary.ID,
			"fallback", fallback.ID,
			"region", region,
			"lat", loc.Lat,
			"lon", loc.Lon,
			"error", err,
		)
		s.metrics.Fallbacks.WithLabelValues(ReasonPrimaryFailed).Inc()

		req.Descriptor = fallback
		fbRes, fbErr := s.provider.Fetch(ctx, req)
		if fbErr != nil {
			return nil, fmt.Errorf("forecast %s: %w", loc.Key(), errors.Join(err, fbErr))
		}
		res = fbRes
		meta.Provider = fallback
		meta.Degraded = true
		meta.FallbackReason = fmt.Sprintf("%s: %s: %v", ReasonPrimaryFailed, primary.ID, err)
	}

	records := res.Records
	switch {
	case domain.ValidTimezone(res.Timezone):
		meta.Timezone, meta.TimezoneSource = res.Timezone, domain.TimezoneFromProvider
	case s.table.RegionTimezone(region) != "":
		meta.Timezone, meta.TimezoneSource = s.table.RegionTimezone(region), domain.TimezoneFromRegion
	}
	if !meta.Provider.Fallback {
		records, meta = s.supplement(ctx, req, res, records, meta, fallback)
	}
	if meta.Timezone == "" {
		s.logger.Warn("no time zone for location, grouping days in UTC",
			"provider", meta.Provider.ID,
			"region", region,
			"location", loc.Key(),
		)
		meta.Timezone, meta.TimezoneSource = "UTC", domain.TimezoneUTCFallback
	}

	records, meta.ElevationCorrection = domain.CorrectElevation(records, target, meta.Provider.ElevationSemantics)
	records = domain.DeriveMetrics(records)

	series := domain.NewForecastTimeSeries(meta, records)
	severities := s.classify(series, target)

	if series.Truncated() {
		s.logger.Info("provider returned a short series",
			"provider", meta.Provider.ID,
			"records", series.Len(),
			"expected", series.ExpectedLen(),
		)
	}

	return &Forecast{
		Series:     series,
		Severities: severities,
		Days:       domain.SummarizeDays(domain.GroupByDay(series.Records(), series.TimeLocation()), severities),
	}, nil
}

// supplement fills fields the primary lacks from the fallback model. A
// failing secondary leaves those fields null; it never fails the forecast.
func (s *Service) supplement(ctx context.Context, req domain.FetchRequest, primary domain.FetchResult, records []domain.NormalizedHourlyForecast, meta domain.SeriesMeta, secondary domain.ProviderDescriptor) ([]domain.NormalizedHourlyForecast, domain.SeriesMeta) {
	wanted := domain.NewFieldSet()
	for _, f := range domain.SupplementableFields {
		if primary.Missing.Has(f) {
			wanted.Add(f)
		}
	}
	if len(wanted) == 0 {
		return records, meta
	}

	req.Descriptor = secondary
	res, err := s.provider.Fetch(ctx, req)
	if err != nil {
		s.logger.Warn("supplementation source failed, fields stay null",
			"provider", secondary.ID,
			"fields", wanted.Sorted(),
			"error", err,
		)
		return records, meta
	}

	records, filled := domain.Supplement(records, res.Records, wanted)
	if len(filled) > 0 {
		meta.Supplemented = make(map[domain.Field]string, len(filled))
		for f := range filled {
			meta.Supplemented[f] = secondary.ID
			s.metrics.SupplementedFields.WithLabelValues(string(f)).Inc()
		}
	}
	if meta.Timezone == "" && domain.ValidTimezone(res.Timezone) {
		meta.Timezone, meta.TimezoneSource = res.Timezone, domain.TimezoneFromSupplement
	}
	return records, meta
}

func (s *Service) classify(series *domain.ForecastTimeSeries, target *float64) []domain.SeverityResult {
	out := make([]domain.SeverityResult, series.Len())
	for i := range out {
		out[i] = domain.Classify(series.At(i), target)
		s.metrics.SeverityLevels.WithLabelValues(out[i].Level.String()).Inc()
	}
	return out
}

func (s *Service) validate(loc domain.Location, hours int) error {
	if err := s.validateHorizon(hours); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return err
	}
	if !s.table.Covers(loc.Lat, loc.Lon) {
		return fmt.Errorf("%w: %.4f,%.4f is outside provider coverage", domain.ErrInvalidLocation, loc.Lat, loc.Lon)
	}
	return nil
}

func (s *Service) validateHorizon(hours int) error {
	if hours < 0 || hours > s.opts.MaxHorizonHours {
		return fmt.Errorf("%w: %d hours (allowed 0..%d)", domain.ErrInvalidHorizon, hours, s.opts.MaxHorizonHours)
	}
	return nil
}
