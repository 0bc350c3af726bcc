package domain

import (
	"context"
	"sort"
	"time"
)

// FetchRequest is what the pipeline asks of a provider adapter.
type FetchRequest struct {
	Descriptor      ProviderDescriptor
	Location        Location
	TargetElevation *float64
	// Hours is the horizon; a complete answer has Hours+1 records (offsets 0..Hours).
	Hours int
	// Now anchors offset 0.
	Now time.Time
}

// FetchResult is a provider's normalized answer. Records may be fewer than
// requested; Missing lists documented fields the provider did not supply.
type FetchResult struct {
	Provider string
	Records  []NormalizedHourlyForecast
	Missing  FieldSet
	Timezone string
}

// Provider fetches hourly forecasts from one upstream source and maps them
// to the canonical schema.
type Provider interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// FieldSet is a set of field names.
type FieldSet map[Field]struct{}

// NewFieldSet returns a set holding fs.
func NewFieldSet(fs ...Field) FieldSet {
	s := make(FieldSet, len(fs))
	for _, f := range fs {
		s[f] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// Add inserts f.
func (s FieldSet) Add(f Field) { s[f] = struct{}{} }

// Sorted returns the members in canonical field order.
func (s FieldSet) Sorted() []Field {
	out := make([]Field, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	order := make(map[Field]int, len(Fields))
	for i, f := range Fields {
		order[f] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// MissingFields returns the fields from candidates that no record carries.
func MissingFields(records []NormalizedHourlyForecast, candidates []Field) FieldSet {
	missing := NewFieldSet()
	for _, f := range candidates {
		present := false
		for i := range records {
			if records[i].Has(f) {
				present = true
				break
			}
		}
		if !present {
			missing.Add(f)
		}
	}
	return missing
}
