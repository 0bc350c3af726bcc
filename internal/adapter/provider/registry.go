package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
)

// Registry dispatches a fetch to the adapter registered for the
// descriptor's kind.
type Registry struct {
	byKind map[string]domain.Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[string]domain.Provider)}
}

// Register binds kind to p, replacing any previous binding.
func (r *Registry) Register(kind string, p domain.Provider) {
	r.byKind[kind] = p
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate reports descriptors whose kind has no adapter.
func (r *Registry) Validate(table *domain.ProviderTable) error {
	for _, d := range table.Descriptors() {
		if _, ok := r.byKind[d.Kind]; !ok {
			return fmt.Errorf("provider %s: no adapter for kind %q", d.ID, d.Kind)
		}
	}
	return nil
}

// Fetch treats an unknown kind as an unavailable provider so the caller
// can still fall back.
func (r *Registry) Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	p, ok := r.byKind[req.Descriptor.Kind]
	if !ok {
		return domain.FetchResult{}, domain.Unavailable(req.Descriptor.ID, fmt.Errorf("no adapter for kind %q", req.Descriptor.Kind))
	}
	return p.Fetch(ctx, req)
}
