package rt

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/covidmodeling/covid-data-service/internal/observability"
	"github.com/covidmodeling/covid-data-service/internal/store"
)

// csvHeader is the fixed column order of rt.csv inside the archive.
var csvHeader = []string{"date", "cases", "R_mean", "R_var", "Q0.025", "Q0.25", "Q0.5", "Q0.75", "Q0.975", "state"}

const archiveEntry = "rt.csv"

// ArchivePath returns the dated archive filename for the given day.
func ArchivePath(dir string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("rt-%s.zip", day.Format("2006-01-02")))
}

// Writer persists an estimation run as one compressed, dated archive. Each
// run supersedes any prior archive for the same date; archives for other
// dates are never touched.
type Writer struct {
	dir     string
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates an archive writer over the data directory.
func NewWriter(dir string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	return &Writer{dir: dir, clock: clock, logger: logger, metrics: metrics}
}

// Write serializes the rows to rt.csv inside rt-<today>.zip and atomically
// moves it into place. The zip entry's modified time is pinned to the archive
// date, so a same-day re-run over identical data is byte-identical.
func (w *Writer) Write(rows []ResultRow) (string, error) {
	day := w.clock.Now()
	path := ArchivePath(w.dir, day)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     archiveEntry,
		Method:   zip.Deflate,
		Modified: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return "", fmt.Errorf("create archive entry: %w", err)
	}

	cw := csv.NewWriter(entry)
	if err := cw.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write archive header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			formatFloat(row.Cases),
			formatFloat(row.Mean),
			formatFloat(row.Variance),
			formatFloat(row.Q025),
			formatFloat(row.Q25),
			formatFloat(row.Q50),
			formatFloat(row.Q75),
			formatFloat(row.Q975),
			row.Region,
		}
		if err := cw.Write(record); err != nil {
			return "", fmt.Errorf("write archive row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush archive rows: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}

	if err := store.WriteAtomic(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("persist archive: %w", err)
	}

	w.metrics.RtRowsWritten.Set(float64(len(rows)))
	w.logger.Info("archive written", "path", path, "rows", len(rows))
	return path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
