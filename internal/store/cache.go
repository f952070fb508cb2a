// Package store implements the filesystem-backed daily payload cache.
//
// One cache entry exists per (dataset kind, calendar day): the timeseries
// payload for 2021-07-16 lives at st-2021-07-16.json, the daily snapshot at
// dd-2021-07-16.json. Entries are created on first successful fetch of a day
// and never mutated. The region-population snapshot is a separate undated
// file, written once and reused across days.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/observability"
)

// filePrefixes maps dataset kinds to their cache filename prefixes.
var filePrefixes = map[domain.Dataset]string{
	domain.DatasetTimeseries: "st",
	domain.DatasetDaily:      "dd",
}

// FetchFunc downloads a dataset when no cache entry exists for today.
type FetchFunc func(ctx context.Context, ds domain.Dataset) ([]byte, error)

// DailyCache is a date-keyed file cache over a data directory.
type DailyCache struct {
	dir     string
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDailyCache creates the cache, its directory tree if absent, and prunes
// dated entries older than retentionDays (0 disables pruning).
func NewDailyCache(dir string, retentionDays int, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*DailyCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &DailyCache{dir: dir, clock: clock, logger: logger, metrics: metrics}
	if retentionDays > 0 {
		pruned, err := c.prune(retentionDays)
		if err != nil {
			return nil, err
		}
		if pruned > 0 {
			logger.Info("pruned stale cache entries", "count", pruned, "retention_days", retentionDays)
		}
	}
	return c, nil
}

// Path returns the cache file path for a dataset on the given day.
func (c *DailyCache) Path(ds domain.Dataset, day time.Time) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s-%s.json", filePrefixes[ds], day.Format("2006-01-02")))
}

// FetchOrLoad returns today's payload for the dataset, reading the cache
// entry if one exists and fetching (then persisting) otherwise. The returned
// bool reports whether cached data was used; it is advisory, not an error.
// A fetch failure is fatal and leaves no cache entry behind.
func (c *DailyCache) FetchOrLoad(ctx context.Context, ds domain.Dataset, fetch FetchFunc) ([]byte, bool, error) {
	path := c.Path(ds, c.clock.Now())

	body, err := os.ReadFile(path)
	if err == nil {
		c.metrics.CacheLookups.WithLabelValues(string(ds), "hit").Inc()
		c.logger.Info("data is up to date, using local file", "dataset", ds, "path", path)
		return body, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("read cache entry %s: %w", path, err)
	}

	c.metrics.CacheLookups.WithLabelValues(string(ds), "miss").Inc()
	body, err = fetch(ctx, ds)
	if err != nil {
		return nil, false, err
	}
	if err := WriteAtomic(path, body); err != nil {
		return nil, false, fmt.Errorf("persist cache entry: %w", err)
	}
	return body, false, nil
}

// ReadOrCreate serves an undated companion file (the population snapshot):
// read it if present, otherwise build its contents once and persist them.
// The returned bool reports whether the file already existed.
func (c *DailyCache) ReadOrCreate(name string, build func() ([]byte, error)) ([]byte, bool, error) {
	path := filepath.Join(c.dir, name)

	body, err := os.ReadFile(path)
	if err == nil {
		return body, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	body, err = build()
	if err != nil {
		return nil, false, err
	}
	if err := WriteAtomic(path, body); err != nil {
		return nil, false, fmt.Errorf("persist %s: %w", name, err)
	}
	return body, false, nil
}

// prune removes dated payload entries older than retentionDays. The undated
// population snapshot is left alone.
func (c *DailyCache) prune(retentionDays int) (int, error) {
	cutoff := c.clock.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("scan cache dir: %w", err)
	}

	pruned := 0
	for _, e := range entries {
		day, ok := entryDate(e.Name())
		if !ok || !day.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return pruned, fmt.Errorf("prune %s: %w", e.Name(), err)
		}
		pruned++
	}
	return pruned, nil
}

// entryDate parses the date out of a dated cache filename like
// "st-2021-07-16.json". Non-matching names return ok=false.
func entryDate(name string) (time.Time, bool) {
	for _, prefix := range filePrefixes {
		rest, ok := strings.CutPrefix(name, prefix+"-")
		if !ok {
			continue
		}
		day, err := time.Parse("2006-01-02.json", rest)
		if err == nil {
			return day, true
		}
	}
	return time.Time{}, false
}

// WriteAtomic writes data to a temp file in the target directory and renames
// it into place, so a crash mid-write never leaves a partial file behind.
func WriteAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op on success

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
