package domain

import "fmt"

// cloudBaseFactor is meters of lift per °C of temperature–dewpoint spread:
// rising air cools ~10°C/km while its dewpoint falls ~2°C/km.
const cloudBaseFactor = 125.0

// CloudBase approximates the lifting condensation level in meters above
// ground from temperature and dewpoint (°C). A non-positive spread means
// saturated air at the surface, so the base is 0.
func CloudBase(temp, dewpoint float64) float64 {
	spread := temp - dewpoint
	if spread < 0 {
		spread = 0
	}
	return spread * cloudBaseFactor
}

// StormTier buckets convective available potential energy.
type StormTier int

const (
	StormWeak StormTier = iota
	StormModerate
	StormStrong
	StormExtreme
)

func (t StormTier) String() string {
	switch t {
	case StormWeak:
		return "weak"
	case StormModerate:
		return "moderate"
	case StormStrong:
		return "strong"
	case StormExtreme:
		return "extreme"
	default:
		return fmt.Sprintf("StormTier(%d)", int(t))
	}
}

// StormTierFor maps CAPE in J/kg to a tier:
// <300 weak | <1000 moderate | ≤2500 strong | >2500 extreme.
func StormTierFor(cape float64) StormTier {
	switch {
	case cape < 300:
		return StormWeak
	case cape < 1000:
		return StormModerate
	case cape <= 2500:
		return StormStrong
	default:
		return StormExtreme
	}
}

// DeriveMetrics fills cloud base on records whose provider did not supply
// it. It must run after elevation correction. Records without a dewpoint
// keep a nil cloud base. The input slice is never modified.
func DeriveMetrics(records []NormalizedHourlyForecast) []NormalizedHourlyForecast {
	out := make([]NormalizedHourlyForecast, len(records))
	for i, r := range records {
		if r.CloudBase == nil && r.Temperature != nil && r.Dewpoint != nil {
			r.Set(FieldCloudBase, CloudBase(*r.Temperature, *r.Dewpoint), ProvenanceDerived)
		}
		out[i] = r
	}
	return out
}
