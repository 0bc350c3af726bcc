package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
)

// RateLimited holds calls to an upstream host to a token-bucket rate. Batch
// fan-out shares one limiter per host so concurrency cannot exceed the
// provider's fair-use limit.
type RateLimited struct {
	inner   domain.Provider
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst.
func NewRateLimited(inner domain.Provider, rps float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.FetchResult{}, domain.Unavailable(req.Descriptor.ID, fmt.Errorf("rate limit wait: %w", err))
	}
	return r.inner.Fetch(ctx, req)
}
