package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
)

var errNoRecordAtOffset = errors.New("provider returned no record for the requested hour")

// LocationSeverity is one location's entry in a severity summary. NoData
// marks a location that could not be evaluated; it is never reported as safe.
type LocationSeverity struct {
	Location domain.Location        `json:"location"`
	Provider string                 `json:"provider,omitempty"`
	Degraded bool                   `json:"degraded"`
	Severity *domain.SeverityResult `json:"severity"`
	NoData   bool                   `json:"no_data"`
	Error    string                 `json:"error,omitempty"`
}

// SeveritySummary is the route-wide risk at one hour offset.
type SeveritySummary struct {
	Offset int `json:"offset"`
	// WorstLevel covers only locations with data and is nil when none had any.
	WorstLevel  *domain.Level      `json:"worst_level"`
	Complete    bool               `json:"complete"`
	PerLocation []LocationSeverity `json:"per_location"`
}

// GetSeveritySummary classifies every location at offset and reports the
// worst level among those that returned data.
func (s *Service) GetSeveritySummary(ctx context.Context, locs []domain.Location, offset int) (*SeveritySummary, error) {
	if err := s.validateHorizon(offset); err != nil {
		return nil, err
	}

	results := s.fanOut(ctx, locs, offset)
	summary := &SeveritySummary{
		Offset:      offset,
		Complete:    true,
		PerLocation: make([]LocationSeverity, len(results)),
	}

	var evaluated []domain.SeverityResult
	for i, r := range results {
		entry := LocationSeverity{Location: r.Location}
		sev, err := severityAt(r, offset)
		if err != nil {
			entry.NoData = true
			entry.Error = err.Error()
			summary.Complete = false
		} else {
			meta := r.Forecast.Series.Meta()
			entry.Provider = meta.Provider.ID
			entry.Degraded = meta.Degraded
			entry.Severity = &sev
			evaluated = append(evaluated, sev)
		}
		summary.PerLocation[i] = entry
	}

	if len(evaluated) > 0 {
		worst := domain.WorstLevel(evaluated)
		summary.WorstLevel = &worst
	}
	return summary, nil
}

func severityAt(r LocationResult, offset int) (domain.SeverityResult, error) {
	if r.Err != nil {
		return domain.SeverityResult{}, r.Err
	}
	series := r.Forecast.Series
	for i := 0; i < series.Len(); i++ {
		if series.At(i).Offset == offset {
			return r.Forecast.Severities[i], nil
		}
	}
	return domain.SeverityResult{}, fmt.Errorf("%w: offset %d", errNoRecordAtOffset, offset)
}
