// Package domain models hourly mountain-weather forecasts reconciled from
// several region-specific providers, and classifies each hour into a hazard
// level.
//
// # Pipeline
//
// Every request flows one way:
//
//	Select provider → Fetch → Normalize → Supplement → Correct elevation
//	→ Derive metrics → Classify → ForecastTimeSeries
//
// Everything in this package is pure. Fetching lives in the adapters and
// orchestration in package forecast.
//
// # Units
//
//	temperature, dewpoint        °C
//	wind speed, gust             km/h
//	wind direction               degrees, meteorological (from)
//	precipitation                mm
//	snowfall                     cm
//	cloud cover, probability     %
//	cloud base                   m above ground
//	freezing level, elevations   m above mean sea level
//	convective energy (CAPE)     J/kg
//	offsets                      whole hours from the current hour, from 0
//
// Unavailable values are nil pointers, never zero.
//
// # Elevation Semantics
//
// A provider's elevation is either a coarse grid-cell average (GRID_AVERAGE)
// or already adjusted to the queried point (POINT_CORRECTED). The flag lives
// on the ProviderDescriptor and is never inferred from the provider's name.
// For GRID_AVERAGE sources, air temperature is moved to the caller's
// elevation with the standard lapse rate:
//
//	adjusted = raw + (referenceElevation - targetElevation) × 0.0065
//
// e.g. −13°C at a 4043 m grid cell is −6.5°C at 3048 m.
//
// # Derived Metrics
//
// Cloud base is the LCL approximation (T − Td) × 125 m, computed from the
// corrected temperature, and only when the provider did not supply one.
// CAPE is bucketed into storm tiers:
//
//	<300 weak | 300–1000 moderate | 1000–2500 strong | >2500 extreme
//
// # Severity Classification
//
// Each dimension is evaluated on its own and the worst level wins:
//
//	Wind:        30–50 km/h caution | ≥50 danger
//	Gust:        36–60 km/h caution | ≥60 danger   (1.2 × wind thresholds)
//	Wind chill:  0–5°C caution      | <0 danger
//	Rain:        ≥40% caution       | ≥70% and ≥5 mm danger
//
// Wind chill uses 13.12 + 0.6215T − 11.37V^0.16 + 0.3965TV^0.16 when
// T ≤ 10°C and V > 4.8 km/h, and equals T otherwise. Strong or extreme storm
// tiers together with a thunderstorm weather code add a thunderstorm
// trigger, and a freezing level below the caller's elevation adds a caution.
//
// The classifier is monotonic in wind, gust, rain probability and amount,
// and anti-monotonic in wind chill. Null inputs are listed in
// SeverityResult.Unevaluated so "no hazard" is never confused with "no data".
package domain
