// Package forecast reads precomputed model forecasts from CSV files named by
// convention. No derivation happens here: forecasts are produced by an
// external training pipeline and dropped into the data directory.
package forecast

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/covidmodeling/covid-data-service/internal/domain"
)

// Row is one forecast day. Std columns are NaN when the file lacks them.
type Row struct {
	Date              time.Time
	DeltaConfirmed    float64
	DeltaDeceased     float64
	DeltaConfirmedStd float64
	DeltaDeceasedStd  float64
}

// MarshalJSON renders NaN values as null, since JSON has no NaN literal.
func (r Row) MarshalJSON() ([]byte, error) {
	fields := []struct {
		name  string
		value float64
	}{
		{"delta_confirmed", r.DeltaConfirmed},
		{"delta_deceased", r.DeltaDeceased},
		{"delta_confirmed_std", r.DeltaConfirmedStd},
		{"delta_deceased_std", r.DeltaDeceasedStd},
	}

	out := make(map[string]any, len(fields)+1)
	out["date"] = r.Date.Format("2006-01-02")
	for _, f := range fields {
		if math.IsNaN(f.value) {
			out[f.name] = nil
		} else {
			out[f.name] = f.value
		}
	}
	return json.Marshal(out)
}

// Columns of interest in the forecast files. "delta deseased std" is
// misspelled in the upstream file format and matched verbatim.
var wantColumns = []string{"date", "delta confirmed", "delta deceased", "delta confirmed std", "delta deseased std"}

// Reader loads forecast files from the data directory.
type Reader struct {
	dir string
}

// NewReader creates a forecast Reader.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Get reads the forecast for the given method, horizon, and smoothing.
// Smoothing must be 0 (none) or 7. The file is named
// "{method}{smoothing}_{horizon}_pred_new.csv"; a missing file is NotFound.
// The compartment argument is reserved: current forecast files carry only
// the confirmed and deceased compartments, both always returned.
func (r *Reader) Get(compartment string, horizonDays int, method string, smoothing int) ([]Row, error) {
	if smoothing != 0 && smoothing != 7 {
		return nil, fmt.Errorf("smoothing must be 0 or 7, got %d", smoothing)
	}
	_ = compartment

	suffix := ""
	if smoothing != 0 {
		suffix = strconv.Itoa(smoothing)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("%s%s_%d_pred_new.csv", method, suffix, horizonDays))

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: forecast file %s", domain.ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("open forecast file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed forecast file %s: %v", domain.ErrUpstream, filepath.Base(path), err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: forecast file %s has no rows", domain.ErrUpstream, filepath.Base(path))
	}

	index := make(map[string]int)
	for i, col := range records[0] {
		index[col] = i
	}
	if _, ok := index["date"]; !ok {
		return nil, fmt.Errorf("%w: forecast file %s has no date column", domain.ErrUpstream, filepath.Base(path))
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		date, err := time.Parse("2006-01-02", record[index["date"]])
		if err != nil {
			return nil, fmt.Errorf("%w: forecast file %s has malformed date %q", domain.ErrUpstream, filepath.Base(path), record[index["date"]])
		}
		rows = append(rows, Row{
			Date:              date,
			DeltaConfirmed:    field(record, index, wantColumns[1]),
			DeltaDeceased:     field(record, index, wantColumns[2]),
			DeltaConfirmedStd: field(record, index, wantColumns[3]),
			DeltaDeceasedStd:  field(record, index, wantColumns[4]),
		})
	}
	return rows, nil
}

func field(record []string, index map[string]int, col string) float64 {
	i, ok := index[col]
	if !ok || i >= len(record) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(record[i], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
