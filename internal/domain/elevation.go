package domain

// LapseRate is the standard atmospheric lapse rate in °C per meter.
const LapseRate = 0.0065

// CorrectionStatus records what the elevation corrector did to a series.
type CorrectionStatus string

const (
	CorrectionApplied               CorrectionStatus = "applied"
	CorrectionSkippedPointCorrected CorrectionStatus = "skipped_point_corrected"
	CorrectionSkippedNoTarget       CorrectionStatus = "skipped_no_target"
	CorrectionSkippedNoReference    CorrectionStatus = "skipped_no_reference"
)

// LapseAdjustment is the temperature delta from moving reference → target.
// Positive when the target is lower than the reference.
func LapseAdjustment(reference, target float64) float64 {
	return (reference - target) * LapseRate
}

// CorrectElevation shifts air temperature from each record's reference
// elevation to target. Wind chill is derived from the corrected temperature
// downstream, so it follows automatically. Dewpoint is left as reported and
// freezing level is an absolute height (m AMSL), so neither is shifted.
// A shifted temperature is tagged derived.
//
// The input slice is never modified.
func CorrectElevation(records []NormalizedHourlyForecast, target *float64, semantics ElevationSemantics) ([]NormalizedHourlyForecast, CorrectionStatus) {
	if target == nil {
		return records, CorrectionSkippedNoTarget
	}
	if semantics == PointCorrected {
		return records, CorrectionSkippedPointCorrected
	}

	out := make([]NormalizedHourlyForecast, len(records))
	applied := 0
	for i, r := range records {
		if r.ReferenceElevation != nil && r.Temperature != nil {
			r.Set(FieldTemperature, *r.Temperature+LapseAdjustment(*r.ReferenceElevation, *target), ProvenanceDerived)
			applied++
		}
		out[i] = r
	}
	if applied == 0 && len(records) > 0 {
		return out, CorrectionSkippedNoReference
	}
	return out, CorrectionApplied
}
