package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// regionRe accepts ISO 3166-1 alpha-2 codes, optional subdivision suffixes
// ("US-AK") and the wildcard used by the global fallback.
var regionRe = regexp.MustCompile(`^(\*|[A-Z]{2}(-[A-Z0-9]{1,3})?)$`)

// Location is a forecast point. Elevation is the caller's elevation in
// meters; nil disables elevation correction. Region is optional and is
// resolved from coordinates when empty.
type Location struct {
	ID        string   `json:"id,omitempty"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Elevation *float64 `json:"elevation_m,omitempty"`
	Region    string   `json:"region,omitempty"`
}

// Key identifies the location in batch results.
func (l Location) Key() string {
	if l.ID != "" {
		return l.ID
	}
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
}

// Validate rejects coordinates no provider can serve and malformed region codes.
func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || math.IsInf(l.Lat, 0) || l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidLocation, l.Lat)
	}
	if math.IsNaN(l.Lon) || math.IsInf(l.Lon, 0) || l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidLocation, l.Lon)
	}
	if l.Elevation != nil && (math.IsNaN(*l.Elevation) || math.IsInf(*l.Elevation, 0)) {
		return fmt.Errorf("%w: elevation is not finite", ErrInvalidLocation)
	}
	if l.Region != "" && !ValidRegion(l.Region) {
		return fmt.Errorf("%w: region code %q", ErrInvalidLocation, l.Region)
	}
	return nil
}

// ValidRegion reports whether code is a syntactically valid region code.
func ValidRegion(code string) bool {
	return regionRe.MatchString(normalizeRegion(code))
}

func normalizeRegion(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
