package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/observability"
)

var testDay = time.Date(2021, 7, 16, 9, 30, 0, 0, time.UTC)

func newTestCache(t *testing.T, retentionDays int, clock clockwork.Clock) *DailyCache {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cache, err := NewDailyCache(t.TempDir(), retentionDays, clock, slog.New(slog.DiscardHandler), metrics)
	require.NoError(t, err)
	return cache
}

func countingFetch(payload []byte, calls *int) FetchFunc {
	return func(context.Context, domain.Dataset) ([]byte, error) {
		*calls++
		return payload, nil
	}
}

func TestFetchOrLoad_RoundTrip(t *testing.T) {
	cache := newTestCache(t, 0, clockwork.NewFakeClockAt(testDay))
	payload := []byte(`{"TT":{"dates":{"2021-07-15":{"delta":{"confirmed":10}}}}}`)

	calls := 0
	first, cached, err := cache.FetchOrLoad(context.Background(), domain.DatasetTimeseries, countingFetch(payload, &calls))
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, payload, first)

	// Second call the same day hits the cache: no network call, identical bytes.
	second, cached, err := cache.FetchOrLoad(context.Background(), domain.DatasetTimeseries, countingFetch(payload, &calls))
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestFetchOrLoad_NewDayFetchesAgain(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testDay)
	cache := newTestCache(t, 0, clock)

	calls := 0
	fetch := countingFetch([]byte(`{}`), &calls)

	_, _, err := cache.FetchOrLoad(context.Background(), domain.DatasetDaily, fetch)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, cached, err := cache.FetchOrLoad(context.Background(), domain.DatasetDaily, fetch)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, calls)
}

func TestFetchOrLoad_KindsKeyedSeparately(t *testing.T) {
	cache := newTestCache(t, 0, clockwork.NewFakeClockAt(testDay))

	tsCalls, dailyCalls := 0, 0
	_, _, err := cache.FetchOrLoad(context.Background(), domain.DatasetTimeseries, countingFetch([]byte(`{"ts":1}`), &tsCalls))
	require.NoError(t, err)

	body, cached, err := cache.FetchOrLoad(context.Background(), domain.DatasetDaily, countingFetch([]byte(`{"daily":1}`), &dailyCalls))
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []byte(`{"daily":1}`), body)
	assert.Equal(t, 1, tsCalls)
	assert.Equal(t, 1, dailyCalls)
}

func TestFetchOrLoad_FetchFailureLeavesNoEntry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testDay)
	cache := newTestCache(t, 0, clock)

	wantErr := errors.New("connection reset")
	_, _, err := cache.FetchOrLoad(context.Background(), domain.DatasetTimeseries,
		func(context.Context, domain.Dataset) ([]byte, error) { return nil, wantErr })
	require.ErrorIs(t, err, wantErr)

	_, statErr := os.Stat(cache.Path(domain.DatasetTimeseries, clock.Now()))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestReadOrCreate(t *testing.T) {
	cache := newTestCache(t, 0, clockwork.NewFakeClockAt(testDay))

	builds := 0
	build := func() ([]byte, error) {
		builds++
		return []byte(`{"KA":61095297}`), nil
	}

	body, existed, err := cache.ReadOrCreate("state-population.json", build)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, []byte(`{"KA":61095297}`), body)

	body, existed, err = cache.ReadOrCreate("state-population.json", build)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, []byte(`{"KA":61095297}`), body)
	assert.Equal(t, 1, builds)
}

func TestRetentionPruning(t *testing.T) {
	dir := t.TempDir()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.DiscardHandler)

	stale := filepath.Join(dir, "st-2021-06-01.json")
	fresh := filepath.Join(dir, "st-2021-07-15.json")
	population := filepath.Join(dir, "state-population.json")
	for _, p := range []string{stale, fresh, population} {
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0o644))
	}

	_, err := NewDailyCache(dir, 30, clockwork.NewFakeClockAt(testDay), logger, metrics)
	require.NoError(t, err)

	_, staleErr := os.Stat(stale)
	assert.True(t, errors.Is(staleErr, os.ErrNotExist), "entry past retention should be pruned")
	_, freshErr := os.Stat(fresh)
	assert.NoError(t, freshErr)
	_, popErr := os.Stat(population)
	assert.NoError(t, popErr, "population snapshot is never pruned")
}

func TestRetentionDisabledKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	old := filepath.Join(dir, "st-2020-03-01.json")
	require.NoError(t, os.WriteFile(old, []byte("{}"), 0o644))

	_, err := NewDailyCache(dir, 0, clockwork.NewFakeClockAt(testDay), slog.New(slog.DiscardHandler), metrics)
	require.NoError(t, err)

	_, statErr := os.Stat(old)
	assert.NoError(t, statErr)
}
