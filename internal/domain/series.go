package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SeriesMeta describes how a series was produced. Fallback substitution and
// skipped corrections are recorded here as data, not only in logs.
type SeriesMeta struct {
	Location            Location           `json:"location"`
	Provider            ProviderDescriptor `json:"provider"`
	TargetElevation     *float64           `json:"target_elevation_m"`
	RequestedHours      int                `json:"requested_hours"`
	Timezone            string             `json:"timezone"`
	TimezoneSource      TimezoneSource     `json:"timezone_source"`
	GeneratedAt         time.Time          `json:"generated_at"`
	Degraded            bool               `json:"degraded"`
	FallbackReason      string             `json:"fallback_reason,omitempty"`
	ElevationCorrection CorrectionStatus   `json:"elevation_correction"`
	// Supplemented maps each filled field to the provider that filled it.
	Supplemented map[Field]string `json:"supplemented,omitempty"`
}

// TimezoneSource records where SeriesMeta.Timezone came from.
type TimezoneSource string

const (
	TimezoneFromProvider   TimezoneSource = "provider"
	TimezoneFromRegion     TimezoneSource = "region"
	TimezoneFromSupplement TimezoneSource = "supplement"
	// TimezoneUTCFallback means no zone could be resolved and days are
	// grouped on UTC midnight rather than local midnight.
	TimezoneUTCFallback TimezoneSource = "utc_fallback"
)

// ValidTimezone reports whether name is a loadable IANA zone.
func ValidTimezone(name string) bool {
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// ForecastTimeSeries is an immutable, offset-ordered sequence of hourly
// records for one (location, elevation, horizon) request.
type ForecastTimeSeries struct {
	meta    SeriesMeta
	records []NormalizedHourlyForecast
}

// NewForecastTimeSeries sorts records by offset, drops negative offsets and
// keeps the first record for any repeated offset. Missing hours are not
// filled in: a short provider answer yields a short series.
func NewForecastTimeSeries(meta SeriesMeta, records []NormalizedHourlyForecast) *ForecastTimeSeries {
	sorted := make([]NormalizedHourlyForecast, 0, len(records))
	for _, r := range records {
		if r.Offset >= 0 {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	out := sorted[:0]
	for i, r := range sorted {
		if i > 0 && r.Offset == out[len(out)-1].Offset {
			continue
		}
		out = append(out, r)
	}

	meta.Supplemented = cloneSupplemented(meta.Supplemented)
	return &ForecastTimeSeries{meta: meta, records: out}
}

func cloneSupplemented(m map[Field]string) map[Field]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[Field]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Meta returns a copy of the series metadata.
func (s *ForecastTimeSeries) Meta() SeriesMeta {
	m := s.meta
	m.Supplemented = cloneSupplemented(s.meta.Supplemented)
	return m
}

// Len is the number of records actually present.
func (s *ForecastTimeSeries) Len() int { return len(s.records) }

// At returns the i-th record in offset order.
func (s *ForecastTimeSeries) At(i int) NormalizedHourlyForecast { return s.records[i] }

// Records returns a copy of all records.
func (s *ForecastTimeSeries) Records() []NormalizedHourlyForecast {
	out := make([]NormalizedHourlyForecast, len(s.records))
	copy(out, s.records)
	return out
}

// ExpectedLen is the record count of a complete answer: offsets 0..RequestedHours.
func (s *ForecastTimeSeries) ExpectedLen() int { return s.meta.RequestedHours + 1 }

// Truncated reports whether the provider returned fewer hours than requested.
func (s *ForecastTimeSeries) Truncated() bool { return s.Len() < s.ExpectedLen() }

// ResolutionKm is the native resolution of the provider that produced the series.
func (s *ForecastTimeSeries) ResolutionKm() float64 { return s.meta.Provider.ResolutionKm }

// TimeLocation returns the location's time zone, or UTC when it is unknown.
func (s *ForecastTimeSeries) TimeLocation() *time.Location {
	if s.meta.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.meta.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type seriesJSON struct {
	SeriesMeta
	Truncated bool                       `json:"truncated"`
	Hours     []NormalizedHourlyForecast `json:"hours"`
}

func (s *ForecastTimeSeries) MarshalJSON() ([]byte, error) {
	hours := s.records
	if hours == nil {
		hours = []NormalizedHourlyForecast{}
	}
	return json.Marshal(seriesJSON{SeriesMeta: s.meta, Truncated: s.Truncated(), Hours: hours})
}

func (s *ForecastTimeSeries) UnmarshalJSON(data []byte) error {
	var v seriesJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = *NewForecastTimeSeries(v.SeriesMeta, v.Hours)
	return nil
}

// Range is a forward window of whole hours from offset 0, inclusive.
type Range struct {
	Hours int
}

// Named presentation ranges.
var (
	Next12Hours = Range{Hours: 12}
	Next24Hours = Range{Hours: 24}
	Next48Hours = Range{Hours: 48}
	Next7Days   = Range{Hours: 7 * 24}
)

// Len is the number of records a complete window holds.
func (r Range) Len() int { return r.Hours + 1 }

func (r Range) String() string {
	if r.Hours > 0 && r.Hours%24 == 0 && r.Hours > 48 {
		return strconv.Itoa(r.Hours/24) + "d"
	}
	return strconv.Itoa(r.Hours) + "h"
}

// ParseRange accepts "12h", "24h", "7d" or a bare hour count.
func ParseRange(s string) (Range, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	mult := 1
	switch {
	case strings.HasSuffix(s, "d"):
		mult = 24
		s = strings.TrimSuffix(s, "d")
	case strings.HasSuffix(s, "h"):
		s = strings.TrimSuffix(s, "h")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Range{}, fmt.Errorf("%w: range %q", ErrInvalidHorizon, s)
	}
	return Range{Hours: n * mult}, nil
}

// Slice returns the records of the series whose offsets fall in r. It never
// fabricates hours: a short or gapped series yields a short slice.
func Slice(s *ForecastTimeSeries, r Range) []NormalizedHourlyForecast {
	return r.Window(s.records)
}

// Window returns the records with offsets 0..r.Hours, in input order and at
// most r.Len() of them. Records outside the window are dropped, so a gap in
// the input never pulls a later hour into range.
func (r Range) Window(records []NormalizedHourlyForecast) []NormalizedHourlyForecast {
	out := make([]NormalizedHourlyForecast, 0, min(len(records), max(r.Len(), 0)))
	for _, rec := range records {
		if len(out) == r.Len() {
			break
		}
		if rec.Offset < 0 || rec.Offset > r.Hours {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// DayBucket is one local calendar day of hourly records. Start is the
// index of the bucket's first record in the slice it was grouped from.
type DayBucket struct {
	Date  string                     `json:"date"`
	Start int                        `json:"start"`
	Hours []NormalizedHourlyForecast `json:"hours"`
}

// GroupByDay partitions records, assumed offset-ordered, into contiguous
// calendar-day buckets in loc. Every record lands in exactly one bucket.
func GroupByDay(records []NormalizedHourlyForecast, loc *time.Location) []DayBucket {
	if loc == nil {
		loc = time.UTC
	}
	var buckets []DayBucket
	for i, r := range records {
		date := r.Time.In(loc).Format(time.DateOnly)
		if n := len(buckets); n > 0 && buckets[n-1].Date == date {
			buckets[n-1].Hours = append(buckets[n-1].Hours, r)
			continue
		}
		buckets = append(buckets, DayBucket{Date: date, Start: i, Hours: []NormalizedHourlyForecast{r}})
	}
	return buckets
}

// DailySummary condenses a day bucket for consumers that show daily
// min/max instead of hourly ticks. Aggregates over fields with no values
// stay nil.
type DailySummary struct {
	Date        string   `json:"date"`
	Hours       int      `json:"hours"`
	MinTemp     *float64 `json:"min_temp_c"`
	MaxTemp     *float64 `json:"max_temp_c"`
	MaxWind     *float64 `json:"max_wind_kmh"`
	MaxGust     *float64 `json:"max_gust_kmh"`
	TotalPrecip *float64 `json:"total_precip_mm"`
	TotalSnow   *float64 `json:"total_snow_cm"`
	WorstLevel  Level    `json:"worst_level"`
}

// SummarizeDays builds one summary per bucket. severities is parallel to
// the slice the buckets were grouped from.
func SummarizeDays(buckets []DayBucket, severities []SeverityResult) []DailySummary {
	out := make([]DailySummary, 0, len(buckets))
	for _, b := range buckets {
		d := DailySummary{Date: b.Date, Hours: len(b.Hours)}
		for j, r := range b.Hours {
			d.MinTemp = minPtr(d.MinTemp, r.Temperature)
			d.MaxTemp = maxPtr(d.MaxTemp, r.Temperature)
			d.MaxWind = maxPtr(d.MaxWind, r.WindSpeed)
			d.MaxGust = maxPtr(d.MaxGust, r.WindGust)
			d.TotalPrecip = sumPtr(d.TotalPrecip, r.Precipitation)
			d.TotalSnow = sumPtr(d.TotalSnow, r.Snowfall)
			if idx := b.Start + j; idx < len(severities) && severities[idx].Level > d.WorstLevel {
				d.WorstLevel = severities[idx].Level
			}
		}
		out = append(out, d)
	}
	return out
}

func minPtr(acc, v *float64) *float64 {
	if v == nil {
		return acc
	}
	if acc == nil || *v < *acc {
		return Float(*v)
	}
	return acc
}

func maxPtr(acc, v *float64) *float64 {
	if v == nil {
		return acc
	}
	if acc == nil || *v > *acc {
		return Float(*v)
	}
	return acc
}

func sumPtr(acc, v *float64) *float64 {
	if v == nil {
		return acc
	}
	if acc == nil {
		return Float(*v)
	}
	return Float(*acc + *v)
}
