package dataset

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/observability"
	"github.com/covidmodeling/covid-data-service/internal/store"
)

func newPopulationCache(t *testing.T) *store.DailyCache {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	clock := clockwork.NewFakeClockAt(time.Date(2021, 7, 16, 0, 0, 0, 0, time.UTC))
	cache, err := store.NewDailyCache(t.TempDir(), 0, clock, slog.New(slog.DiscardHandler), metrics)
	require.NoError(t, err)
	return cache
}

func TestLoadPopulations(t *testing.T) {
	cache := newPopulationCache(t)

	fetches := 0
	fetch := func(_ context.Context, ds domain.Dataset) ([]byte, error) {
		fetches++
		assert.Equal(t, domain.DatasetDaily, ds)
		return []byte(`{"KA": {"meta": {"population": 61095297}}, "TT": {"meta": {"population": 1380004385}}}`), nil
	}

	pops, err := LoadPopulations(context.Background(), cache, fetch)
	require.NoError(t, err)
	assert.Equal(t, int64(61095297), pops["KA"])
	assert.Equal(t, int64(1380004385), pops["TT"])
	assert.Equal(t, int64(-1), pops[domain.UnknownCode], "unknown region carries the sentinel")

	// Snapshot is written once and reused indefinitely.
	pops, err = LoadPopulations(context.Background(), cache, fetch)
	require.NoError(t, err)
	assert.Equal(t, int64(61095297), pops["KA"])
	assert.Equal(t, 1, fetches)
}

func TestLoadPopulations_FetchFailure(t *testing.T) {
	cache := newPopulationCache(t)

	wantErr := errors.New("boom")
	_, err := LoadPopulations(context.Background(), cache, func(context.Context, domain.Dataset) ([]byte, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestLoadPopulations_MalformedDailyPayload(t *testing.T) {
	cache := newPopulationCache(t)

	_, err := LoadPopulations(context.Background(), cache, func(context.Context, domain.Dataset) ([]byte, error) {
		return []byte(`{broken`), nil
	})
	require.ErrorIs(t, err, domain.ErrUpstream)
}
