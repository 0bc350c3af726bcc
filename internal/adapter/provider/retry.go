// Package provider holds adapter-agnostic decorators around domain.Provider:
// bounded retry, rate limiting, response caching and dispatch by kind.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/observability"
)

// maxAttempts is one call plus one retry.
const maxAttempts = 2

// Retrying gives every call a bounded timeout and retries a failed call
// once. It does not pick a fallback; that is the caller's decision.
type Retrying struct {
	inner   domain.Provider
	timeout time.Duration
	delay   time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRetrying wraps inner. timeout bounds each attempt; delay separates them.
func NewRetrying(inner domain.Provider, timeout, delay time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Retrying {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Retrying{
		inner:   inner,
		timeout: timeout,
		delay:   delay,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

func (r *Retrying) Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	id := req.Descriptor.ID
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := r.attempt(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return domain.FetchResult{}, domain.Unavailable(id, fmt.Errorf("request canceled: %w", ctx.Err()))
		}
		if !domain.IsProviderFailure(err) || attempt == maxAttempts {
			break
		}

		r.logger.Warn("provider call failed, retrying",
			"provider", id,
			"attempt", attempt,
			"error", err,
		)
		r.metrics.ProviderRetries.WithLabelValues(id).Inc()
		if err := r.sleep(ctx); err != nil {
			return domain.FetchResult{}, domain.Unavailable(id, fmt.Errorf("request canceled: %w", err))
		}
	}
	return domain.FetchResult{}, lastErr
}

func (r *Retrying) attempt(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	if r.timeout <= 0 {
		return r.inner.Fetch(ctx, req)
	}
	actx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.inner.Fetch(actx, req)
}

func (r *Retrying) sleep(ctx context.Context) error {
	if r.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(r.delay):
		return nil
	}
}
