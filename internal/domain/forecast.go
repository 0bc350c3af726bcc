package domain

import (
	"math"
	"time"
)

// Field names a documented member of NormalizedHourlyForecast.
type Field string

const (
	FieldTemperature       Field = "temperature"
	FieldDewpoint          Field = "dewpoint"
	FieldHumidity          Field = "humidity"
	FieldWindSpeed         Field = "wind_speed"
	FieldWindGust          Field = "wind_gust"
	FieldWindDirection     Field = "wind_direction"
	FieldPrecipProbability Field = "precip_probability"
	FieldPrecipitation     Field = "precipitation"
	FieldSnowfall          Field = "snowfall"
	FieldCloudCover        Field = "cloud_cover"
	FieldCloudBase         Field = "cloud_base"
	FieldFreezingLevel     Field = "freezing_level"
	FieldWeatherCode       Field = "weather_code"
	FieldConvectiveEnergy  Field = "convective_energy"
)

// Fields lists every documented field in canonical order.
var Fields = []Field{
	FieldTemperature,
	FieldDewpoint,
	FieldHumidity,
	FieldWindSpeed,
	FieldWindGust,
	FieldWindDirection,
	FieldPrecipProbability,
	FieldPrecipitation,
	FieldSnowfall,
	FieldCloudCover,
	FieldCloudBase,
	FieldFreezingLevel,
	FieldWeatherCode,
	FieldConvectiveEnergy,
}

// Provenance records where a field value came from.
type Provenance string

const (
	ProvenanceNative       Provenance = "native"
	ProvenanceSupplemented Provenance = "supplemented"
	ProvenanceDerived      Provenance = "derived"
	ProvenanceMissing      Provenance = "missing"
)

// NormalizedHourlyForecast is one forecast hour in canonical units:
// °C, km/h, degrees, %, mm, cm and meters. Every nullable field is an
// explicit nil when the value is unavailable; zero always means zero.
type NormalizedHourlyForecast struct {
	Offset             int       `json:"offset"`
	Time               time.Time `json:"time"`
	Temperature        *float64  `json:"temperature_c"`
	Dewpoint           *float64  `json:"dewpoint_c"`
	Humidity           *float64  `json:"humidity_pct"`
	WindSpeed          *float64  `json:"wind_speed_kmh"`
	WindGust           *float64  `json:"wind_gust_kmh"`
	WindDirection      *float64  `json:"wind_direction_deg"`
	PrecipProbability  *float64  `json:"precip_probability_pct"`
	Precipitation      *float64  `json:"precipitation_mm"`
	Snowfall           *float64  `json:"snowfall_cm"`
	CloudCover         *float64  `json:"cloud_cover_pct"`
	CloudBase          *float64  `json:"cloud_base_m"`
	FreezingLevel      *float64  `json:"freezing_level_m"`
	WeatherCode        *int      `json:"weather_code"`
	ConvectiveEnergy   *float64  `json:"convective_energy_jkg"`
	ReferenceElevation *float64  `json:"reference_elevation_m"`

	// Provenance is copy-on-write: Set never mutates a map that another
	// record value may share.
	Provenance map[Field]Provenance `json:"provenance"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Value returns the numeric value of f and whether it is present.
func (r NormalizedHourlyForecast) Value(f Field) (float64, bool) {
	if f == FieldWeatherCode {
		if r.WeatherCode == nil {
			return 0, false
		}
		return float64(*r.WeatherCode), true
	}
	slot := r.slot(f)
	if slot == nil || *slot == nil {
		return 0, false
	}
	return **slot, true
}

// Has reports whether f carries a value.
func (r NormalizedHourlyForecast) Has(f Field) bool {
	_, ok := r.Value(f)
	return ok
}

// Set stores v for f and tags it with p.
func (r *NormalizedHourlyForecast) Set(f Field, v float64, p Provenance) {
	if r.Assign(f, v) {
		r.setProvenance(f, p)
	}
}

// Assign stores v in f without touching provenance, for adapters that build
// a record column by column and call StampNative once at the end. It
// reports whether f names a value slot.
func (r *NormalizedHourlyForecast) Assign(f Field, v float64) bool {
	if f == FieldWeatherCode {
		code := int(math.Round(v))
		r.WeatherCode = &code
		return true
	}
	slot := r.slot(f)
	if slot == nil {
		return false
	}
	val := v
	*slot = &val
	return true
}

// FieldProvenance returns the provenance of f. Absent values are always
// reported as missing regardless of what the map says.
func (r NormalizedHourlyForecast) FieldProvenance(f Field) Provenance {
	if !r.Has(f) {
		return ProvenanceMissing
	}
	if p, ok := r.Provenance[f]; ok {
		return p
	}
	return ProvenanceNative
}

// StampNative tags every present field as native and every absent one as
// missing. Adapters call it once a record is fully mapped.
func (r *NormalizedHourlyForecast) StampNative() {
	prov := make(map[Field]Provenance, len(Fields))
	for _, f := range Fields {
		if r.Has(f) {
			prov[f] = ProvenanceNative
		} else {
			prov[f] = ProvenanceMissing
		}
	}
	r.Provenance = prov
}

func (r *NormalizedHourlyForecast) setProvenance(f Field, p Provenance) {
	next := make(map[Field]Provenance, len(r.Provenance)+1)
	for k, v := range r.Provenance {
		next[k] = v
	}
	next[f] = p
	r.Provenance = next
}

func (r *NormalizedHourlyForecast) slot(f Field) **float64 {
	switch f {
	case FieldTemperature:
		return &r.Temperature
	case FieldDewpoint:
		return &r.Dewpoint
	case FieldHumidity:
		return &r.Humidity
	case FieldWindSpeed:
		return &r.WindSpeed
	case FieldWindGust:
		return &r.WindGust
	case FieldWindDirection:
		return &r.WindDirection
	case FieldPrecipProbability:
		return &r.PrecipProbability
	case FieldPrecipitation:
		return &r.Precipitation
	case FieldSnowfall:
		return &r.Snowfall
	case FieldCloudCover:
		return &r.CloudCover
	case FieldCloudBase:
		return &r.CloudBase
	case FieldFreezingLevel:
		return &r.FreezingLevel
	case FieldConvectiveEnergy:
		return &r.ConvectiveEnergy
	default:
		return nil
	}
}

// HourKey is the alignment key used when matching records from different
// providers: the UTC hour the record starts at.
func HourKey(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// OffsetFrom returns the whole-hour offset of t from the hour containing now.
func OffsetFrom(now, t time.Time) int {
	return int(HourKey(t).Sub(HourKey(now)) / time.Hour)
}
