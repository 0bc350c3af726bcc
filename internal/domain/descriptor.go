package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // region zones must resolve in minimal images

	"gopkg.in/yaml.v3"
)

// ElevationSemantics says what the elevation attached to a provider's
// records means, and therefore whether lapse-rate correction applies.
type ElevationSemantics string

const (
	// GridAverage: values describe a model cell at its average terrain
	// height. Correction to the caller's elevation is required.
	GridAverage ElevationSemantics = "GRID_AVERAGE"
	// PointCorrected: the provider already adjusted values to the queried
	// point. Correction must be skipped.
	PointCorrected ElevationSemantics = "POINT_CORRECTED"
)

// Valid reports whether s is a known semantics value.
func (s ElevationSemantics) Valid() bool {
	return s == GridAverage || s == PointCorrected
}

// FallbackRegion is the wildcard region code served by the fallback descriptor.
const FallbackRegion = "*"

// Bounds is a lat/lon bounding box in degrees.
type Bounds struct {
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
	MinLon float64 `yaml:"min_lon" json:"min_lon"`
	MaxLon float64 `yaml:"max_lon" json:"max_lon"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ProviderDescriptor is one row of the provider table.
type ProviderDescriptor struct {
	ID                 string             `yaml:"id" json:"id"`
	Kind               string             `yaml:"kind" json:"kind"`
	Model              string             `yaml:"model" json:"model,omitempty"`
	Regions            []string           `yaml:"regions" json:"regions"`
	ResolutionKm       float64            `yaml:"resolution_km" json:"resolution_km"`
	RefreshInterval    time.Duration      `yaml:"refresh_interval" json:"refresh_interval"`
	ElevationSemantics ElevationSemantics `yaml:"elevation_semantics" json:"elevation_semantics"`
	// Coverage limits where the descriptor can serve at all. Only checked for
	// the fallback; nil means global.
	Coverage *Bounds `yaml:"coverage" json:"coverage,omitempty"`
	Fallback bool    `yaml:"fallback" json:"fallback"`
}

type regionBounds struct {
	Code     string `yaml:"code"`
	Bounds   Bounds `yaml:"bounds"`
	Timezone string `yaml:"timezone"`
}

type tableFile struct {
	Version   string               `yaml:"version"`
	Regions   []regionBounds       `yaml:"regions"`
	Providers []ProviderDescriptor `yaml:"providers"`
}

// ProviderTable maps region codes to provider descriptors. It is immutable
// after construction and safe for concurrent reads.
type ProviderTable struct {
	version     string
	regions     []regionBounds
	descriptors []ProviderDescriptor
	byRegion    map[string]int
	fallback    int
}

//go:embed providers.yaml
var defaultTableYAML []byte

// DefaultProviderTable returns the table compiled into the binary.
func DefaultProviderTable() *ProviderTable {
	t, err := ParseProviderTable(defaultTableYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded provider table: %v", err))
	}
	return t
}

// ParseProviderTable decodes and validates a YAML provider table.
func ParseProviderTable(data []byte) (*ProviderTable, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse provider table: %w", err)
	}
	if f.Version == "" {
		return nil, errors.New("provider table: version is required")
	}

	t := &ProviderTable{
		version:     f.Version,
		descriptors: f.Providers,
		byRegion:    make(map[string]int),
		fallback:    -1,
	}

	ids := make(map[string]bool, len(f.Providers))
	for i, d := range f.Providers {
		if err := validateDescriptor(d); err != nil {
			return nil, fmt.Errorf("provider table: %w", err)
		}
		if ids[d.ID] {
			return nil, fmt.Errorf("provider table: duplicate provider id %q", d.ID)
		}
		ids[d.ID] = true

		if d.Fallback {
			if t.fallback >= 0 {
				return nil, fmt.Errorf("provider table: both %q and %q are marked fallback", t.descriptors[t.fallback].ID, d.ID)
			}
			t.fallback = i
		}
		for _, code := range d.Regions {
			code = normalizeRegion(code)
			if code == FallbackRegion {
				if !d.Fallback {
					return nil, fmt.Errorf("provider table: %q claims %q but is not the fallback", d.ID, FallbackRegion)
				}
				continue
			}
			if !regionRe.MatchString(code) {
				return nil, fmt.Errorf("provider table: %q has invalid region %q", d.ID, code)
			}
			if prev, ok := t.byRegion[code]; ok {
				return nil, fmt.Errorf("provider table: region %s mapped to both %q and %q", code, t.descriptors[prev].ID, d.ID)
			}
			t.byRegion[code] = i
		}
	}
	if t.fallback < 0 {
		return nil, errors.New("provider table: no fallback provider")
	}

	for _, r := range f.Regions {
		code := normalizeRegion(r.Code)
		if !regionRe.MatchString(code) || code == FallbackRegion {
			return nil, fmt.Errorf("provider table: invalid bounds region %q", r.Code)
		}
		if r.Timezone != "" {
			if _, err := time.LoadLocation(r.Timezone); err != nil {
				return nil, fmt.Errorf("provider table: region %s: %w", code, err)
			}
		}
		t.regions = append(t.regions, regionBounds{Code: code, Bounds: r.Bounds, Timezone: r.Timezone})
	}

	return t, nil
}

func validateDescriptor(d ProviderDescriptor) error {
	switch {
	case d.ID == "":
		return errors.New("provider id is required")
	case d.Kind == "":
		return fmt.Errorf("provider %q: kind is required", d.ID)
	case !d.ElevationSemantics.Valid():
		return fmt.Errorf("provider %q: unknown elevation_semantics %q", d.ID, d.ElevationSemantics)
	case d.ResolutionKm <= 0:
		return fmt.Errorf("provider %q: resolution_km must be positive", d.ID)
	}
	return nil
}

// Version is the table's declared data version.
func (t *ProviderTable) Version() string { return t.version }

// Descriptors returns a copy of every descriptor in table order.
func (t *ProviderTable) Descriptors() []ProviderDescriptor {
	out := make([]ProviderDescriptor, len(t.descriptors))
	copy(out, t.descriptors)
	return out
}

// Fallback returns the global fallback descriptor.
func (t *ProviderTable) Fallback() ProviderDescriptor {
	return t.descriptors[t.fallback]
}

// Select returns the descriptor serving region. Subdivision codes fall back
// to their country ("US-CO" → "US"). Unmapped regions get the global fallback;
// absence of a dedicated provider is not an error.
func (t *ProviderTable) Select(region string) ProviderDescriptor {
	code := normalizeRegion(region)
	if i, ok := t.byRegion[code]; ok {
		return t.descriptors[i]
	}
	if len(code) > 2 && code[2] == '-' {
		if i, ok := t.byRegion[code[:2]]; ok {
			return t.descriptors[i]
		}
	}
	return t.Fallback()
}

// ResolveRegion maps coordinates to a region code using the table's bounds,
// first match in table order. Points outside every box resolve to "*".
func (t *ProviderTable) ResolveRegion(lat, lon float64) string {
	for _, r := range t.regions {
		if r.Bounds.Contains(lat, lon) {
			return r.Code
		}
	}
	return FallbackRegion
}

// RegionTimezone returns the IANA zone configured for region, trying the
// country for subdivision codes. It is empty for multi-zone or unknown regions.
func (t *ProviderTable) RegionTimezone(region string) string {
	code := normalizeRegion(region)
	for _, try := range []string{code, countryOf(code)} {
		for _, r := range t.regions {
			if r.Code == try && r.Timezone != "" {
				return r.Timezone
			}
		}
	}
	return ""
}

func countryOf(code string) string {
	if len(code) > 2 && code[2] == '-' {
		return code[:2]
	}
	return code
}

// Covers reports whether the fallback can serve the point, which makes it
// the outer limit of what any request can be answered for.
func (t *ProviderTable) Covers(lat, lon float64) bool {
	fb := t.Fallback()
	return fb.Coverage == nil || fb.Coverage.Contains(lat, lon)
}
