package metno

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
)

// Locationforecast GeoJSON response types.

type response struct {
	Geometry struct {
		// [lon, lat, altitude]
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties *struct {
		Timeseries []step `json:"timeseries"`
	} `json:"properties"`
}

type step struct {
	Time time.Time `json:"time"`
	Data struct {
		Instant struct {
			Details instant `json:"details"`
		} `json:"instant"`
		Next1Hours *period `json:"next_1_hours"`
	} `json:"data"`
}

type instant struct {
	AirTemperature      *float64 `json:"air_temperature"`
	DewPointTemperature *float64 `json:"dew_point_temperature"`
	RelativeHumidity    *float64 `json:"relative_humidity"`
	WindSpeed           *float64 `json:"wind_speed"`
	WindSpeedOfGust     *float64 `json:"wind_speed_of_gust"`
	WindFromDirection   *float64 `json:"wind_from_direction"`
	CloudAreaFraction   *float64 `json:"cloud_area_fraction"`
}

type period struct {
	Summary struct {
		SymbolCode string `json:"symbol_code"`
	} `json:"summary"`
	Details struct {
		PrecipitationAmount        *float64 `json:"precipitation_amount"`
		ProbabilityOfPrecipitation *float64 `json:"probability_of_precipitation"`
	} `json:"details"`
}

// normalize keeps the hourly part of the timeseries. Past roughly 60 hours
// the API switches to 6-hourly steps without next_1_hours; the series ends
// at the first such step rather than mixing resolutions.
func (r response) normalize(req domain.FetchRequest) ([]domain.NormalizedHourlyForecast, error) {
	if r.Properties == nil || r.Properties.Timeseries == nil {
		return nil, errors.New("properties.timeseries missing")
	}

	var ref *float64
	if len(r.Geometry.Coordinates) >= 3 {
		ref = domain.Float(r.Geometry.Coordinates[2])
	}

	records := make([]domain.NormalizedHourlyForecast, 0, req.Hours+1)
	for i, s := range r.Properties.Timeseries {
		if s.Time.IsZero() {
			return nil, fmt.Errorf("timeseries[%d] has no time", i)
		}
		if s.Data.Next1Hours == nil {
			break
		}
		offset := domain.OffsetFrom(req.Now, s.Time)
		if offset < 0 {
			continue
		}
		if offset > req.Hours {
			break
		}
		d := s.Data.Instant.Details
		if d.AirTemperature == nil {
			return nil, fmt.Errorf("timeseries[%d] has no air_temperature", i)
		}
		next := s.Data.Next1Hours

		rec := domain.NormalizedHourlyForecast{
			Offset:             offset,
			Time:               s.Time.UTC(),
			Temperature:        d.AirTemperature,
			Dewpoint:           d.DewPointTemperature,
			Humidity:           d.RelativeHumidity,
			WindSpeed:          toKmh(d.WindSpeed),
			WindGust:           toKmh(d.WindSpeedOfGust),
			WindDirection:      d.WindFromDirection,
			CloudCover:         d.CloudAreaFraction,
			PrecipProbability:  next.Details.ProbabilityOfPrecipitation,
			Precipitation:      next.Details.PrecipitationAmount,
			WeatherCode:        WMOCode(next.Summary.SymbolCode),
			ReferenceElevation: ref,
		}
		rec.StampNative()
		records = append(records, rec)
	}
	return records, nil
}

func toKmh(ms *float64) *float64 {
	if ms == nil {
		return nil
	}
	return domain.Float(*ms * msToKmh)
}

var symbolToWMO = map[string]int{
	"clearsky":          0,
	"fair":              1,
	"partlycloudy":      2,
	"cloudy":            3,
	"fog":               45,
	"lightrain":         61,
	"rain":              63,
	"heavyrain":         65,
	"lightsleet":        66,
	"sleet":             66,
	"heavysleet":        67,
	"lightsnow":         71,
	"snow":              73,
	"heavysnow":         75,
	"lightrainshowers":  80,
	"rainshowers":       81,
	"heavyrainshowers":  82,
	"lightsleetshowers": 80,
	"sleetshowers":      81,
	"heavysleetshowers": 82,
	"lightsnowshowers":  85,
	"snowshowers":       85,
	"heavysnowshowers":  86,
}

// WMOCode maps a Locationforecast symbol code such as "rainshowers_day" to
// the WMO weather interpretation code. Every thunder variant maps to 95.
// Unknown symbols yield nil.
func WMOCode(symbol string) *int {
	if symbol == "" {
		return nil
	}
	base := symbol
	if i := strings.IndexByte(base, '_'); i >= 0 {
		base = base[:i]
	}
	if strings.Contains(base, "thunder") {
		return domain.Int(95)
	}
	if code, ok := symbolToWMO[base]; ok {
		return domain.Int(code)
	}
	return nil
}
