// Package domain models the covid19india.org v4 "min" API data.
//
// # Data Source
//
// The upstream API publishes two whole-dataset JSON files once a day:
//
//	timeseries.min.json  →  {code: {"dates": {date: {period: {segment: value}}}}}
//	data.min.json        →  {code: {"meta": {"population": N, ...}, ...}}
//
// Region codes are two-letter state/union-territory codes ("KA", "MH", ...),
// plus "TT" for the all-India aggregate and "UN" for cases not yet assigned
// to a state. "UN" is excluded from all normalized output and carries a
// sentinel population of -1 in the population snapshot.
//
// # Payload Conventions
//
// Dates are naive calendar days formatted "2006-01-02". Periods are "delta"
// (that day's increment), "delta7" (7-day trailing sum), and "total"
// (cumulative). Segments include confirmed, deceased, recovered, tested,
// vaccinated1, vaccinated2. A missing day is an absent key, not a zero.
// Delta values can be negative when upstream issues data corrections.
//
// Nested {period: {segment: value}} objects are flattened into
// "period.segment" columns ("delta.confirmed", "total.vaccinated2", ...).
//
// # Derived Columns
//
//	tpr = 100 * delta.confirmed / delta.tested   (test positivity rate, %)
//	cfr = 100 * delta.deceased / delta.confirmed (case fatality rate, %)
//
// Both are NaN when the denominator is zero or missing; undefined ratios are
// never reported as zero.
package domain
