// Package dataset turns raw upstream payloads into per-region time-series
// tables and serves them through a memoizing facade.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/covidmodeling/covid-data-service/internal/adapter/covidapi"
	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/observability"
	"github.com/covidmodeling/covid-data-service/internal/store"
)

// Result is a region selection's outcome: Table for SingleCode selectors,
// Tables for CodeList and AllRegions. Dropped lists unknown codes removed
// from a CodeList selection; it is a non-fatal warning, already logged.
type Result struct {
	Table   *domain.Table
	Tables  map[string]*domain.Table
	Dropped []string
}

// Loader is the public entry point to the normalized dataset. The full
// dataset is fetched and normalized at most once per Loader; every selector
// shape reuses the memoized result. A failed load is not memoized, so the
// next call retries.
type Loader struct {
	cache   *store.DailyCache
	client  *covidapi.Client
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	tables   map[string]*domain.Table
	latest   *domain.CrossSection
	previous *domain.CrossSection
}

// NewLoader creates a Loader over the given cache and API client.
func NewLoader(cache *store.DailyCache, client *covidapi.Client, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		cache:   cache,
		client:  client,
		logger:  logger,
		metrics: metrics,
	}
}

// Get resolves a region selection against the normalized timeseries dataset.
func (l *Loader) Get(ctx context.Context, sel domain.Selector) (*Result, error) {
	tables, err := l.dataset(ctx)
	if err != nil {
		return nil, err
	}

	switch sel.Kind {
	case domain.SingleCode:
		table, ok := tables[sel.Code]
		if !ok {
			return nil, fmt.Errorf("%w: region %q; use the name search to look up valid codes", domain.ErrNotFound, sel.Code)
		}
		return &Result{Table: table}, nil

	case domain.AllRegions:
		all := make(map[string]*domain.Table, len(tables))
		for code, table := range tables {
			all[code] = table
		}
		return &Result{Tables: all}, nil

	case domain.CodeList:
		return l.selectCodes(tables, sel.Codes)

	default:
		return nil, fmt.Errorf("%w: unhandled selector kind %d", domain.ErrNotFound, sel.Kind)
	}
}

// selectCodes resolves a list selection, dropping unknown codes with a
// warning. An empty request or a fully-unknown request is fatal.
func (l *Loader) selectCodes(tables map[string]*domain.Table, codes []string) (*Result, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: no region codes requested", domain.ErrNotFound)
	}

	picked := make(map[string]*domain.Table)
	var dropped []string
	for _, code := range codes {
		if table, ok := tables[code]; ok {
			picked[code] = table
		} else {
			dropped = append(dropped, code)
		}
	}

	if len(picked) == 0 {
		return nil, fmt.Errorf("%w: none of the requested regions exist: %v", domain.ErrNotFound, codes)
	}
	if len(dropped) > 0 {
		l.logger.Warn("unknown region codes dropped from selection", "dropped", dropped)
	}
	return &Result{Tables: picked, Dropped: dropped}, nil
}

// Daily returns two cross-region snapshot tables derived from the timeseries:
// each region's most recent row and its second-most-recent row. Derived
// lazily on first request and memoized alongside the main dataset.
func (l *Loader) Daily(ctx context.Context) (latest, previous *domain.CrossSection, err error) {
	tables, err := l.dataset(ctx)
	if err != nil {
		return nil, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest != nil {
		return l.latest, l.previous, nil
	}

	country, ok := tables[domain.CountryCode]
	if !ok {
		return nil, nil, fmt.Errorf("%w: dataset has no %s aggregate", domain.ErrInvariant, domain.CountryCode)
	}

	latest = &domain.CrossSection{Columns: country.Columns, Rows: make(map[string]domain.Row, len(tables))}
	previous = &domain.CrossSection{Columns: country.Columns, Rows: make(map[string]domain.Row, len(tables))}
	for code, table := range tables {
		last, ok := table.Last()
		if !ok {
			return nil, nil, fmt.Errorf("%w: region %s has no rows", domain.ErrInvariant, code)
		}
		secondLast, ok := table.SecondLast()
		if !ok {
			return nil, nil, fmt.Errorf("%w: region %s has fewer than two rows", domain.ErrInvariant, code)
		}
		latest.Rows[code] = last
		previous.Rows[code] = secondLast
	}

	l.latest, l.previous = latest, previous
	return latest, previous, nil
}

// Search looks up regions by case-insensitive partial display name.
func (l *Loader) Search(partial string) map[string]string {
	return domain.SearchRegions(partial)
}

// RegionNames lists every known display name.
func (l *Loader) RegionNames() []string {
	return domain.RegionNames()
}

// Ready reports whether the dataset has been loaded, for readiness checks.
func (l *Loader) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tables != nil
}

// dataset builds the full normalized dataset on first call and memoizes it.
func (l *Loader) dataset(ctx context.Context) (map[string]*domain.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tables != nil {
		return l.tables, nil
	}

	payload, cached, err := l.cache.FetchOrLoad(ctx, domain.DatasetTimeseries, l.client.Fetch)
	if err != nil {
		return nil, err
	}

	pops, err := LoadPopulations(ctx, l.cache, l.client.Fetch)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tables, err := Normalize(payload, pops)
	if err != nil {
		return nil, err
	}
	l.metrics.NormalizeDuration.Observe(time.Since(start).Seconds())
	l.metrics.RegionsLoaded.Set(float64(len(tables)))
	l.logger.Info("dataset loaded", "regions", len(tables), "from_cache", cached)

	l.tables = tables
	return tables, nil
}
