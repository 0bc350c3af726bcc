package openmeteo

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
)

// Open-Meteo API response types.

type response struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Elevation        *float64 `json:"elevation"`
	Timezone         string   `json:"timezone"`
	UTCOffsetSeconds int      `json:"utc_offset_seconds"`
	Hourly           *hourly  `json:"hourly"`

	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// hourly holds parallel arrays indexed by Time. A variable the model does not
// produce is either absent or an array of nulls.
type hourly struct {
	Time              []int64    `json:"time"`
	Temperature       []*float64 `json:"temperature_2m"`
	Dewpoint          []*float64 `json:"dew_point_2m"`
	Humidity          []*float64 `json:"relative_humidity_2m"`
	WindSpeed         []*float64 `json:"wind_speed_10m"`
	WindGust          []*float64 `json:"wind_gusts_10m"`
	WindDirection     []*float64 `json:"wind_direction_10m"`
	PrecipProbability []*float64 `json:"precipitation_probability"`
	Precipitation     []*float64 `json:"precipitation"`
	Snowfall          []*float64 `json:"snowfall"`
	CloudCover        []*float64 `json:"cloud_cover"`
	FreezingLevel     []*float64 `json:"freezing_level_height"`
	WeatherCode       []*float64 `json:"weather_code"`
	CAPE              []*float64 `json:"cape"`
}

func (h *hourly) columns() map[domain.Field][]*float64 {
	return map[domain.Field][]*float64{
		domain.FieldTemperature:       h.Temperature,
		domain.FieldDewpoint:          h.Dewpoint,
		domain.FieldHumidity:          h.Humidity,
		domain.FieldWindSpeed:         h.WindSpeed,
		domain.FieldWindGust:          h.WindGust,
		domain.FieldWindDirection:     h.WindDirection,
		domain.FieldPrecipProbability: h.PrecipProbability,
		domain.FieldPrecipitation:     h.Precipitation,
		domain.FieldSnowfall:          h.Snowfall,
		domain.FieldCloudCover:        h.CloudCover,
		domain.FieldFreezingLevel:     h.FreezingLevel,
		domain.FieldWeatherCode:       h.WeatherCode,
		domain.FieldConvectiveEnergy:  h.CAPE,
	}
}

var errNoTemperature = errors.New("temperature_2m missing")

// normalize maps the parallel arrays to canonical records. Records before
// the current hour or past the horizon are dropped. Missing lists every
// requested variable that is absent or entirely null.
func (r response) normalize(req domain.FetchRequest) ([]domain.NormalizedHourlyForecast, domain.FieldSet, error) {
	if r.Hourly == nil || r.Hourly.Time == nil {
		return nil, nil, errors.New("hourly.time missing")
	}
	n := len(r.Hourly.Time)
	cols := r.Hourly.columns()

	missing := domain.NewFieldSet(domain.FieldCloudBase)
	for f, col := range cols {
		if col != nil && len(col) != n {
			return nil, nil, fmt.Errorf("hourly %s has %d values for %d timestamps", f, len(col), n)
		}
		if allNull(col) {
			missing.Add(f)
		}
	}
	if missing.Has(domain.FieldTemperature) && n > 0 {
		return nil, nil, errNoTemperature
	}

	var ref *float64
	if r.Elevation != nil && !math.IsNaN(*r.Elevation) {
		ref = domain.Float(*r.Elevation)
	}

	records := make([]domain.NormalizedHourlyForecast, 0, n)
	for i, ts := range r.Hourly.Time {
		t := time.Unix(ts, 0).UTC()
		offset := domain.OffsetFrom(req.Now, t)
		if offset < 0 || offset > req.Hours {
			continue
		}
		rec := domain.NormalizedHourlyForecast{
			Offset:             offset,
			Time:               t,
			ReferenceElevation: ref,
		}
		for f, col := range cols {
			if col == nil || col[i] == nil {
				continue
			}
			rec.Assign(f, *col[i])
		}
		rec.StampNative()
		records = append(records, rec)
	}
	return records, missing, nil
}

func allNull(col []*float64) bool {
	for _, v := range col {
		if v != nil {
			return false
		}
	}
	return true
}
