package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/covidmodeling/covid-data-service/internal/domain"
)

// seriesPayload mirrors timeseries.min.json:
// {code: {"dates": {date: {period: {segment: value}}}}}.
type seriesPayload map[string]struct {
	Dates map[string]map[string]map[string]float64 `json:"dates"`
}

// Normalize converts a raw timeseries payload into one table per region:
// one row per date sorted ascending, nested values flattened into
// "period.segment" columns, population joined in, and tpr/cfr appended.
//
// The unknown-region code is excluded. Any other region missing from the
// population snapshot fails the whole normalization: population is not
// optional, and its absence is a data-integrity bug, not a runtime condition.
func Normalize(payload []byte, pops Populations) (map[string]*domain.Table, error) {
	var parsed seriesPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed timeseries payload: %v", domain.ErrUpstream, err)
	}

	tables := make(map[string]*domain.Table, len(parsed))
	for code, region := range parsed {
		if code == domain.UnknownCode {
			continue
		}
		population, ok := pops[code]
		if !ok {
			return nil, fmt.Errorf("%w: region %s present in timeseries but missing from population snapshot", domain.ErrInvariant, code)
		}

		table, err := regionTable(code, population, region.Dates)
		if err != nil {
			return nil, err
		}
		tables[code] = table
	}
	return tables, nil
}

func regionTable(code string, population int64, dates map[string]map[string]map[string]float64) (*domain.Table, error) {
	dateKeys := make([]string, 0, len(dates))
	for d := range dates {
		dateKeys = append(dateKeys, d)
	}
	sort.Strings(dateKeys)

	columns := make(map[string]struct{})
	rows := make([]domain.Row, 0, len(dateKeys))
	for _, key := range dateKeys {
		day, err := time.Parse("2006-01-02", key)
		if err != nil {
			return nil, fmt.Errorf("%w: region %s has malformed date %q", domain.ErrUpstream, code, key)
		}

		values := make(map[string]float64)
		for period, segments := range dates[key] {
			for segment, value := range segments {
				col := period + "." + segment
				values[col] = value
				columns[col] = struct{}{}
			}
		}
		appendRatios(values)

		rows = append(rows, domain.Row{Date: day, Population: population, Values: values})
	}

	ordered := make([]string, 0, len(columns)+2)
	for col := range columns {
		ordered = append(ordered, col)
	}
	sort.Strings(ordered)
	ordered = append(ordered, "tpr", "cfr")

	return &domain.Table{Region: code, Columns: ordered, Rows: rows}, nil
}

// appendRatios adds the derived percentage columns to one row's values.
// Undefined ratios (zero or missing denominator) propagate as NaN, never as
// zero and never as an error.
func appendRatios(values map[string]float64) {
	values["tpr"] = percent(values, "delta.confirmed", "delta.tested")
	values["cfr"] = percent(values, "delta.deceased", "delta.confirmed")
}

func percent(values map[string]float64, numCol, denCol string) float64 {
	num, numOK := values[numCol]
	den, denOK := values[denCol]
	if !numOK || !denOK || den == 0 {
		return math.NaN()
	}
	return 100 * num / den
}
