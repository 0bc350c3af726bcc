package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindChill(t *testing.T) {
	tests := []struct {
		name  string
		temp  float64
		speed float64
		want  float64
	}{
		{"warm air is unchanged", 12, 30, 12},
		{"calm air is unchanged", 5, 4.8, 5},
		{"light air is unchanged", -5, 3, -5},
		{"exactly 10 degrees uses formula", 10, 20, 13.12 + 6.215 - 11.37*1.6150 + 3.965*1.6150},
		{"cold and windy", -10, 30, -19.52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WindChill(tt.temp, tt.speed), 0.01)
		})
	}
}

func TestWindChill_OutsideRangeIsExact(t *testing.T) {
	for _, temp := range []float64{10.01, 15, 30} {
		assert.Equal(t, temp, WindChill(temp, 60)) //nolint:testifylint // exact identity required
	}
	for _, speed := range []float64{0, 2, 4.8} {
		assert.Equal(t, -8.0, WindChill(-8, speed)) //nolint:testifylint // exact identity required
	}
}

func TestClassifyConditions_HighWindAndHypothermia(t *testing.T) {
	res := classifyConditions(conditions{
		wind:      Float(55),
		windChill: Float(-3),
	})

	assert.Equal(t, LevelDanger, res.Level)
	assert.Contains(t, res.Reasons, "High wind: 55 km/h")
	assert.Contains(t, res.Reasons, "Hypothermia risk: -3°C wind chill")
	assert.Equal(t, "WC", res.DangerCode)
}

func TestClassifyConditions_RainOnlyCaution(t *testing.T) {
	res := classifyConditions(conditions{
		wind:      Float(20),
		windChill: Float(8),
		rainPct:   Float(45),
		rainMM:    Float(2),
	})

	assert.Equal(t, LevelCaution, res.Level)
	assert.Equal(t, []string{"Rain likely: 45% chance"}, res.Reasons)
	assert.Equal(t, "R", res.DangerCode)
}

func TestClassifyConditions_Safe(t *testing.T) {
	res := classifyConditions(conditions{
		wind:      Float(10),
		gust:      Float(20),
		windChill: Float(14),
		rainPct:   Float(10),
		rainMM:    Float(0),
	})

	assert.Equal(t, LevelSafe, res.Level)
	require.NotNil(t, res.Reasons)
	assert.Empty(t, res.Reasons)
	assert.Empty(t, res.DangerCode)
}

func TestClassifyConditions_Thresholds(t *testing.T) {
	tests := []struct {
		name string
		in   conditions
		want Level
	}{
		{"wind just below caution", conditions{wind: Float(29.9)}, LevelSafe},
		{"wind at caution", conditions{wind: Float(30)}, LevelCaution},
		{"wind just below danger", conditions{wind: Float(49.9)}, LevelCaution},
		{"wind at danger", conditions{wind: Float(50)}, LevelDanger},
		{"gust below caution", conditions{gust: Float(35.9)}, LevelSafe},
		{"gust at caution", conditions{gust: Float(36)}, LevelCaution},
		{"gust at danger", conditions{gust: Float(60)}, LevelDanger},
		{"wind chill above caution", conditions{windChill: Float(5.1)}, LevelSafe},
		{"wind chill at caution", conditions{windChill: Float(5)}, LevelCaution},
		{"wind chill at zero", conditions{windChill: Float(0)}, LevelCaution},
		{"wind chill below zero", conditions{windChill: Float(-0.1)}, LevelDanger},
		{"rain below caution", conditions{rainPct: Float(39)}, LevelSafe},
		{"rain at caution", conditions{rainPct: Float(40)}, LevelCaution},
		{"rain likely but light", conditions{rainPct: Float(90), rainMM: Float(4.9)}, LevelCaution},
		{"rain likely amount unknown", conditions{rainPct: Float(90)}, LevelCaution},
		{"heavy rain", conditions{rainPct: Float(70), rainMM: Float(5)}, LevelDanger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyConditions(tt.in).Level)
		})
	}
}

func TestClassifyConditions_Monotonic(t *testing.T) {
	base := func() conditions {
		return conditions{
			wind:      Float(10),
			gust:      Float(15),
			windChill: Float(12),
			rainPct:   Float(20),
			rainMM:    Float(1),
		}
	}

	check := func(t *testing.T, name string, mutate func(c *conditions, step float64), from, to, step float64) {
		t.Helper()
		prev := LevelSafe
		for v := from; v <= to; v += step {
			c := base()
			mutate(&c, v)
			got := classifyConditions(c).Level
			require.GreaterOrEqual(t, got, prev, "%s regressed at %v", name, v)
			prev = got
		}
	}

	check(t, "wind", func(c *conditions, v float64) { c.wind = Float(v) }, 0, 120, 0.5)
	check(t, "gust", func(c *conditions, v float64) { c.gust = Float(v) }, 0, 150, 0.5)
	check(t, "rain probability", func(c *conditions, v float64) { c.rainPct = Float(v); c.rainMM = Float(6) }, 0, 100, 1)
	check(t, "rain amount", func(c *conditions, v float64) { c.rainPct = Float(80); c.rainMM = Float(v) }, 0, 20, 0.25)
	// Decreasing wind chill, expressed as increasing cold.
	check(t, "wind chill", func(c *conditions, v float64) { c.windChill = Float(-v) }, -20, 30, 0.5)
}

func TestClassify_MonotonicInWindAtFixedTemperature(t *testing.T) {
	prev := LevelSafe
	for v := 0.0; v <= 100; v++ {
		rec := NormalizedHourlyForecast{Temperature: Float(8), WindSpeed: Float(v)}
		got := Classify(rec, nil).Level
		require.GreaterOrEqual(t, got, prev, "regressed at %v km/h", v)
		prev = got
	}
}

func TestClassify_ComputesWindChillFromRecord(t *testing.T) {
	rec := NormalizedHourlyForecast{
		Temperature:       Float(-10),
		WindSpeed:         Float(30),
		WindGust:          Float(40),
		PrecipProbability: Float(0),
		Precipitation:     Float(0),
	}
	res := Classify(rec, nil)

	require.NotNil(t, res.WindChill)
	assert.InDelta(t, -19.52, *res.WindChill, 0.01)
	assert.Equal(t, LevelDanger, res.Level)
	assert.Equal(t, "WGC", res.DangerCode)
	assert.Empty(t, res.Unevaluated)
}

func TestClassify_NullInputsAreUnevaluated(t *testing.T) {
	res := Classify(NormalizedHourlyForecast{}, nil)

	assert.Equal(t, LevelSafe, res.Level)
	assert.Nil(t, res.WindChill)
	assert.Equal(t, []Field{
		FieldTemperature,
		FieldWindSpeed,
		FieldWindGust,
		FieldPrecipProbability,
		FieldPrecipitation,
	}, res.Unevaluated)
}

func TestClassify_MissingWindUsesAirTemperature(t *testing.T) {
	res := Classify(NormalizedHourlyForecast{Temperature: Float(3)}, nil)

	require.NotNil(t, res.WindChill)
	assert.InDelta(t, 3.0, *res.WindChill, 1e-9)
	assert.Equal(t, LevelCaution, res.Level)
	assert.Contains(t, res.Unevaluated, FieldWindSpeed)
}

func TestClassify_Thunderstorm(t *testing.T) {
	extreme := Classify(NormalizedHourlyForecast{
		Temperature:      Float(24),
		ConvectiveEnergy: Float(3200),
		WeatherCode:      Int(95),
	}, nil)
	assert.Equal(t, LevelDanger, extreme.Level)
	assert.Equal(t, "T3", extreme.StormCode)
	assert.Contains(t, extreme.Reasons, "Thunderstorm risk: extreme convective energy")

	strongNoThunder := Classify(NormalizedHourlyForecast{
		Temperature:      Float(24),
		ConvectiveEnergy: Float(1500),
		WeatherCode:      Int(2),
	}, nil)
	assert.Equal(t, LevelSafe, strongNoThunder.Level)
	assert.Equal(t, "T2", strongNoThunder.StormCode)

	weak := Classify(NormalizedHourlyForecast{Temperature: Float(24), ConvectiveEnergy: Float(100)}, nil)
	assert.Empty(t, weak.StormCode)
}

func TestClassify_ThunderstormNeedsThunderCode(t *testing.T) {
	tests := []struct {
		name      string
		cape      float64
		code      *int
		wantLevel Level
		wantStorm string
		wantDC    string
	}{
		{name: "extreme clear sky", cape: 3000, code: Int(1), wantLevel: LevelSafe, wantStorm: "T3"},
		{name: "extreme no weather code", cape: 3000, wantLevel: LevelSafe, wantStorm: "T3"},
		{name: "extreme thunder", cape: 3000, code: Int(95), wantLevel: LevelDanger, wantStorm: "T3", wantDC: "T"},
		{name: "strong thunder", cape: 1500, code: Int(96), wantLevel: LevelCaution, wantStorm: "T2", wantDC: "T"},
		{name: "moderate thunder", cape: 600, code: Int(95), wantLevel: LevelSafe, wantStorm: "T1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(NormalizedHourlyForecast{
				Temperature:      Float(24),
				ConvectiveEnergy: Float(tt.cape),
				WeatherCode:      tt.code,
			}, nil)
			assert.Equal(t, tt.wantLevel, res.Level)
			assert.Equal(t, tt.wantStorm, res.StormCode)
			assert.Equal(t, tt.wantDC, res.DangerCode)
			if tt.wantDC == "" {
				assert.Empty(t, res.Reasons)
			}
		})
	}
}

func TestClassify_FreezingLevelBelowTarget(t *testing.T) {
	rec := NormalizedHourlyForecast{Temperature: Float(12), FreezingLevel: Float(2800)}

	assert.Equal(t, LevelCaution, Classify(rec, Float(3048)).Level)
	assert.Equal(t, LevelSafe, Classify(rec, Float(2500)).Level)
	assert.Equal(t, LevelSafe, Classify(rec, nil).Level)
}

func TestLevel_Text(t *testing.T) {
	for _, l := range []Level{LevelSafe, LevelCaution, LevelDanger} {
		b, err := l.MarshalText()
		require.NoError(t, err)

		var got Level
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, l, got)
	}

	_, err := ParseLevel("severe")
	assert.Error(t, err)
}

func TestWorstLevel(t *testing.T) {
	assert.Equal(t, LevelSafe, WorstLevel(nil))
	assert.Equal(t, LevelDanger, WorstLevel([]SeverityResult{
		{Level: LevelCaution}, {Level: LevelDanger}, {Level: LevelSafe},
	}))
}
