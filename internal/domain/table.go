package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

// Row is one (region, date) observation: the date, the region's population,
// and the flattened "period.segment" value columns. A column absent for this
// date is an absent map key; derived ratios that are undefined are NaN.
type Row struct {
	Date       time.Time
	Population int64
	Values     map[string]float64
}

// Value returns the named column for this row, or NaN if absent.
func (r Row) Value(column string) float64 {
	v, ok := r.Values[column]
	if !ok {
		return math.NaN()
	}
	return v
}

// MarshalJSON renders NaN values as null, since JSON has no NaN literal.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"date":"`)
	buf.WriteString(r.Date.Format("2006-01-02"))
	buf.WriteString(`","population":`)
	buf.WriteString(strconv.FormatInt(r.Population, 10))
	buf.WriteString(`,"values":{`)
	first := true
	for _, col := range sortedKeys(r.Values) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		v := r.Values[col]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
		} else {
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// Table is one region's time series: one row per date, dates strictly
// increasing. Tables are built once by the normalizer and treated as
// immutable afterwards.
type Table struct {
	Region  string   `json:"region"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Column extracts one named column across all rows, NaN where absent.
func (t *Table) Column(name string) []float64 {
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Value(name)
	}
	return out
}

// Last returns the most recent row.
func (t *Table) Last() (Row, bool) {
	if len(t.Rows) == 0 {
		return Row{}, false
	}
	return t.Rows[len(t.Rows)-1], true
}

// SecondLast returns the next-to-most-recent row.
func (t *Table) SecondLast() (Row, bool) {
	if len(t.Rows) < 2 {
		return Row{}, false
	}
	return t.Rows[len(t.Rows)-2], true
}

// CrossSection holds one row per region, all for the same relative position
// in each region's series (e.g. everyone's latest day). Used by the daily
// view to compute day-over-day deltas.
type CrossSection struct {
	Columns []string       `json:"columns"`
	Rows    map[string]Row `json:"rows"`
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
