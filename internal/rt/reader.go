package rt

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/covidmodeling/covid-data-service/internal/domain"
)

// Result mirrors the data loader's selector contract: Rows for SingleCode
// selectors, Groups for CodeList and AllRegions, Dropped listing unknown
// codes removed from a list selection.
type Result struct {
	Rows    []ResultRow
	Groups  map[string][]ResultRow
	Dropped []string
}

// Reader serves per-region slices of today's R(t) archive. Computation is a
// separate, deliberately expensive offline step: when today's archive is
// absent the Reader fails explicitly and never recomputes or falls back to a
// stale prior day.
type Reader struct {
	dir    string
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewReader creates a Reader over the data directory.
func NewReader(dir string, clock clockwork.Clock, logger *slog.Logger) *Reader {
	return &Reader{dir: dir, clock: clock, logger: logger}
}

// Load reads today's archive and resolves the region selection against it.
func (r *Reader) Load(sel domain.Selector) (*Result, error) {
	path := ArchivePath(r.dir, r.clock.Now())
	groups, err := readArchive(path)
	if err != nil {
		return nil, err
	}

	switch sel.Kind {
	case domain.SingleCode:
		rows, ok := groups[sel.Code]
		if !ok {
			return nil, fmt.Errorf("%w: region %q has no estimates in today's archive", domain.ErrNotFound, sel.Code)
		}
		return &Result{Rows: rows}, nil

	case domain.AllRegions:
		return &Result{Groups: groups}, nil

	case domain.CodeList:
		if len(sel.Codes) == 0 {
			return nil, fmt.Errorf("%w: no region codes requested", domain.ErrNotFound)
		}
		picked := make(map[string][]ResultRow)
		var dropped []string
		for _, code := range sel.Codes {
			if rows, ok := groups[code]; ok {
				picked[code] = rows
			} else {
				dropped = append(dropped, code)
			}
		}
		if len(picked) == 0 {
			return nil, fmt.Errorf("%w: none of the requested regions exist: %v", domain.ErrNotFound, sel.Codes)
		}
		if len(dropped) > 0 {
			r.logger.Warn("unknown region codes dropped from estimate selection", "dropped", dropped)
		}
		return &Result{Groups: picked, Dropped: dropped}, nil

	default:
		return nil, fmt.Errorf("%w: unhandled selector kind %d", domain.ErrNotFound, sel.Kind)
	}
}

// readArchive parses the archive's rt.csv into per-region groups.
func readArchive(path string) (map[string][]ResultRow, error) {
	zr, err := zip.OpenReader(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: latest estimates not computed yet, check back later", domain.ErrStaleUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()

	var entry io.ReadCloser
	for _, f := range zr.File {
		if f.Name == archiveEntry {
			entry, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s in %s: %w", archiveEntry, path, err)
			}
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: archive %s has no %s entry", domain.ErrUpstream, path, archiveEntry)
	}
	defer entry.Close()

	cr := csv.NewReader(entry)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed archive %s: %v", domain.ErrUpstream, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: archive %s is empty", domain.ErrUpstream, path)
	}

	groups := make(map[string][]ResultRow)
	for _, record := range records[1:] {
		row, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed archive row in %s: %v", domain.ErrUpstream, path, err)
		}
		groups[row.Region] = append(groups[row.Region], row)
	}
	return groups, nil
}

func parseRecord(record []string) (ResultRow, error) {
	if len(record) != len(csvHeader) {
		return ResultRow{}, fmt.Errorf("expected %d fields, got %d", len(csvHeader), len(record))
	}

	date, err := time.Parse("2006-01-02", record[0])
	if err != nil {
		return ResultRow{}, err
	}

	fields := make([]float64, 8)
	for i := range fields {
		fields[i], err = strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return ResultRow{}, err
		}
	}

	return ResultRow{
		Date:     date,
		Cases:    fields[0],
		Mean:     fields[1],
		Variance: fields[2],
		Q025:     fields[3],
		Q25:      fields[4],
		Q50:      fields[5],
		Q75:      fields[6],
		Q975:     fields[7],
		Region:   record[9],
	}, nil
}
