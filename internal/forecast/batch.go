package forecast

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
)

// LocationResult is one location's outcome in a batch. Exactly one of
// Forecast and Err is set.
type LocationResult struct {
	Location domain.Location
	Forecast *Forecast
	Err      error
}

// GetBatchForecast fetches every location independently, at most
// BatchConcurrency at a time. A failure is recorded for its location only.
// Results are keyed by Location.Key; locations sharing a key collapse to
// the last one.
func (s *Service) GetBatchForecast(ctx context.Context, locs []domain.Location, hours int) (map[string]LocationResult, error) {
	if err := s.validateHorizon(hours); err != nil {
		return nil, err
	}
	results := s.fanOut(ctx, locs, hours)

	out := make(map[string]LocationResult, len(results))
	for _, r := range results {
		out[r.Location.Key()] = r
	}
	return out, nil
}

// fanOut returns results in input order.
func (s *Service) fanOut(ctx context.Context, locs []domain.Location, hours int) []LocationResult {
	results := make([]LocationResult, len(locs))

	var g errgroup.Group
	g.SetLimit(s.opts.BatchConcurrency)
	for i, loc := range locs {
		g.Go(func() error {
			f, err := s.GetForecast(ctx, loc, nil, hours)
			results[i] = LocationResult{Location: loc, Forecast: f, Err: err}
			if err != nil {
				s.logger.Warn("batch location failed",
					"location", loc.Key(),
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// InRequestOrder lists results in the order of locs, once per key.
func InRequestOrder(locs []domain.Location, results map[string]LocationResult) []LocationResult {
	out := make([]LocationResult, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, loc := range locs {
		key := loc.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		if r, ok := results[key]; ok {
			out = append(out, r)
		}
	}
	return out
}
