package domain

import (
	"fmt"
	"math"
	"strings"
)

// Level is a hazard tier. Levels are ordered: a higher value is worse.
type Level int

const (
	LevelSafe Level = iota
	LevelCaution
	LevelDanger
)

func (l Level) String() string {
	switch l {
	case LevelSafe:
		return "safe"
	case LevelCaution:
		return "caution"
	case LevelDanger:
		return "danger"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return LevelSafe, nil
	case "caution":
		return LevelCaution, nil
	case "danger":
		return LevelDanger, nil
	default:
		return LevelSafe, fmt.Errorf("unknown severity level %q", s)
	}
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Classification thresholds. Winds in km/h, temperatures in °C,
// probability in %, precipitation in mm.
const (
	windCaution      = 30.0
	windDanger       = 50.0
	gustFactor       = 1.2
	windChillCaution = 5.0
	windChillDanger  = 0.0
	rainCautionPct   = 40.0
	rainDangerPct    = 70.0
	rainDangerMM     = 5.0

	windChillMaxTemp  = 10.0
	windChillMinSpeed = 4.8
)

// Compact danger codes, one per triggered dimension.
const (
	codeWind      = "W"
	codeGust      = "G"
	codeChill     = "C"
	codeRain      = "R"
	codeFreezing  = "F"
	codeLightning = "T"
)

// SeverityResult is the classification of one forecast hour. It is a pure
// derived view and is recomputed rather than stored.
type SeverityResult struct {
	Level      Level    `json:"level"`
	WindChill  *float64 `json:"wind_chill_c"`
	Reasons    []string `json:"reasons"`
	DangerCode string   `json:"danger_code"`
	StormCode  string   `json:"storm_code"`
	// Unevaluated lists inputs that were null, so a dimension could not
	// trigger. Safe with a non-empty Unevaluated is not the same as safe.
	Unevaluated []Field `json:"unevaluated,omitempty"`
}

// WindChill returns the apparent temperature for temp (°C) and wind speed
// (km/h). Outside temp ≤ 10°C and speed > 4.8 km/h it returns temp unchanged.
func WindChill(temp, speed float64) float64 {
	if temp > windChillMaxTemp || speed <= windChillMinSpeed {
		return temp
	}
	v := math.Pow(speed, 0.16)
	return 13.12 + 0.6215*temp - 11.37*v + 0.3965*temp*v
}

// conditions are the classifier inputs after nulls are resolved.
type conditions struct {
	wind, gust, windChill, rainPct, rainMM *float64
	freezingLevel, target                  *float64
	cape                                   *float64
	weatherCode                            *int
}

// classification accumulates triggers, worst level wins.
type classification struct {
	level   Level
	reasons []string
	codes   strings.Builder
}

func (c *classification) trigger(l Level, code, reason string) {
	if l > c.level {
		c.level = l
	}
	c.reasons = append(c.reasons, reason)
	c.codes.WriteString(code)
}

// Classify maps one normalized, elevation-corrected record to a hazard
// level. targetElevation is the caller's elevation and only feeds the
// freezing-level check. It is deterministic and does no I/O.
func Classify(r NormalizedHourlyForecast, targetElevation *float64) SeverityResult {
	var unevaluated []Field
	cond := conditions{
		wind:          r.WindSpeed,
		gust:          r.WindGust,
		rainPct:       r.PrecipProbability,
		rainMM:        r.Precipitation,
		freezingLevel: r.FreezingLevel,
		target:        targetElevation,
		cape:          r.ConvectiveEnergy,
		weatherCode:   r.WeatherCode,
	}

	switch {
	case r.Temperature == nil:
		unevaluated = append(unevaluated, FieldTemperature)
	case r.WindSpeed == nil:
		// Without wind the chill equals air temperature.
		cond.windChill = Float(*r.Temperature)
	default:
		cond.windChill = Float(WindChill(*r.Temperature, *r.WindSpeed))
	}

	for _, f := range []Field{FieldWindSpeed, FieldWindGust, FieldPrecipProbability, FieldPrecipitation} {
		if !r.Has(f) {
			unevaluated = append(unevaluated, f)
		}
	}

	res := classifyConditions(cond)
	res.Unevaluated = unevaluated
	return res
}

func classifyConditions(in conditions) SeverityResult {
	var c classification

	if in.wind != nil {
		v := *in.wind
		switch {
		case v >= windDanger:
			c.trigger(LevelDanger, codeWind, fmt.Sprintf("High wind: %.0f km/h", v))
		case v >= windCaution:
			c.trigger(LevelCaution, codeWind, fmt.Sprintf("Strong wind: %.0f km/h", v))
		}
	}

	if in.gust != nil {
		g := *in.gust
		switch {
		case g >= windDanger*gustFactor:
			c.trigger(LevelDanger, codeGust, fmt.Sprintf("Dangerous gusts: %.0f km/h", g))
		case g >= windCaution*gustFactor:
			c.trigger(LevelCaution, codeGust, fmt.Sprintf("Strong gusts: %.0f km/h", g))
		}
	}

	if in.windChill != nil {
		wc := *in.windChill
		switch {
		case wc < windChillDanger:
			c.trigger(LevelDanger, codeChill, fmt.Sprintf("Hypothermia risk: %.0f°C wind chill", wc))
		case wc <= windChillCaution:
			c.trigger(LevelCaution, codeChill, fmt.Sprintf("Cold exposure: %.0f°C wind chill", wc))
		}
	}

	if in.rainPct != nil {
		p := *in.rainPct
		heavy := in.rainMM != nil && *in.rainMM >= rainDangerMM
		switch {
		case p >= rainDangerPct && heavy:
			c.trigger(LevelDanger, codeRain, fmt.Sprintf("Heavy rain: %.0f%% chance, %.1f mm", p, *in.rainMM))
		case p >= rainCautionPct:
			c.trigger(LevelCaution, codeRain, fmt.Sprintf("Rain likely: %.0f%% chance", p))
		}
	}

	if in.freezingLevel != nil && in.target != nil && *in.freezingLevel < *in.target {
		c.trigger(LevelCaution, codeFreezing,
			fmt.Sprintf("Below freezing level: %.0f m freezing level at %.0f m", *in.freezingLevel, *in.target))
	}

	stormCode := ""
	if in.cape != nil {
		tier := StormTierFor(*in.cape)
		stormCode = stormCodeFor(tier)
		thunder := in.weatherCode != nil && isThunderstorm(*in.weatherCode)
		switch {
		case tier == StormExtreme && thunder:
			c.trigger(LevelDanger, codeLightning, fmt.Sprintf("Thunderstorm risk: %s convective energy", tier))
		case tier == StormStrong && thunder:
			c.trigger(LevelCaution, codeLightning, fmt.Sprintf("Thunderstorm risk: %s convective energy", tier))
		}
	}

	reasons := c.reasons
	if reasons == nil {
		reasons = []string{}
	}
	return SeverityResult{
		Level:      c.level,
		WindChill:  in.windChill,
		Reasons:    reasons,
		DangerCode: c.codes.String(),
		StormCode:  stormCode,
	}
}

func stormCodeFor(t StormTier) string {
	switch t {
	case StormModerate:
		return "T1"
	case StormStrong:
		return "T2"
	case StormExtreme:
		return "T3"
	default:
		return ""
	}
}

// isThunderstorm reports WMO weather codes 95, 96 and 99.
func isThunderstorm(code int) bool {
	return code == 95 || code == 96 || code == 99
}

// WorstLevel returns the highest level among results, or LevelSafe for none.
func WorstLevel(results []SeverityResult) Level {
	worst := LevelSafe
	for _, r := range results {
		if r.Level > worst {
			worst = r.Level
		}
	}
	return worst
}
