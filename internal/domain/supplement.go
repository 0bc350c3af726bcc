package domain

// SupplementableFields are the fields a secondary provider may fill in.
// Temperature is mandatory for every adapter and cloud base is derived, so
// neither is taken from another source.
var SupplementableFields = []Field{
	FieldDewpoint,
	FieldHumidity,
	FieldWindGust,
	FieldWindDirection,
	FieldPrecipProbability,
	FieldPrecipitation,
	FieldSnowfall,
	FieldCloudCover,
	FieldFreezingLevel,
	FieldWeatherCode,
	FieldConvectiveEnergy,
}

// Supplement fills the given fields on primary records from secondary
// records of the same UTC hour, tagging each filled value as supplemented.
// Hours the secondary lacks stay nil. It returns the updated records and
// the set of fields that received at least one value. Inputs are not
// modified.
func Supplement(primary, secondary []NormalizedHourlyForecast, fields FieldSet) ([]NormalizedHourlyForecast, FieldSet) {
	filled := NewFieldSet()
	out := make([]NormalizedHourlyForecast, len(primary))
	copy(out, primary)
	if len(fields) == 0 || len(secondary) == 0 {
		return out, filled
	}

	byHour := make(map[int64]NormalizedHourlyForecast, len(secondary))
	for _, r := range secondary {
		byHour[HourKey(r.Time).Unix()] = r
	}

	for i := range out {
		src, ok := byHour[HourKey(out[i].Time).Unix()]
		if !ok {
			continue
		}
		for f := range fields {
			if out[i].Has(f) {
				continue
			}
			if v, ok := src.Value(f); ok {
				out[i].Set(f, v, ProvenanceSupplemented)
				filled.Add(f)
			}
		}
	}
	return out, filled
}
