package rt

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/observability"
)

var archiveDay = time.Date(2021, 7, 16, 14, 30, 0, 0, time.UTC)

func sampleRows() []ResultRow {
	base := time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)
	var rows []ResultRow
	for _, region := range []string{"KA", "TT"} {
		for i := 0; i < 3; i++ {
			rows = append(rows, ResultRow{
				Region:   region,
				Date:     base.AddDate(0, 0, i),
				Cases:    float64(100 + i),
				Mean:     1.1 + float64(i)/10,
				Variance: 0.02,
				Q025:     0.9,
				Q25:      1.0,
				Q50:      1.1,
				Q75:      1.2,
				Q975:     1.4,
			})
		}
	}
	return rows
}

func newArchiveFixtures(t *testing.T) (*Writer, *Reader, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	clock := clockwork.NewFakeClockAt(archiveDay)
	return NewWriter(dir, clock, logger, metrics), NewReader(dir, clock, logger), dir
}

func TestReader_StaleUnavailableBeforeWrite(t *testing.T) {
	_, reader, _ := newArchiveFixtures(t)

	_, err := reader.Load(domain.One("KA"))
	require.ErrorIs(t, err, domain.ErrStaleUnavailable)
	assert.Contains(t, err.Error(), "check back later")
}

func TestArchiveRoundTrip(t *testing.T) {
	writer, reader, _ := newArchiveFixtures(t)

	path, err := writer.Write(sampleRows())
	require.NoError(t, err)
	assert.Contains(t, path, "rt-2021-07-16.zip")

	t.Run("single region", func(t *testing.T) {
		result, err := reader.Load(domain.One("KA"))
		require.NoError(t, err)
		require.Len(t, result.Rows, 3)
		assert.Equal(t, "KA", result.Rows[0].Region)
		assert.Equal(t, time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC), result.Rows[0].Date)
		assert.Equal(t, 1.1, result.Rows[0].Mean)
		assert.Equal(t, 0.9, result.Rows[0].Q025)
	})

	t.Run("all regions", func(t *testing.T) {
		result, err := reader.Load(domain.All())
		require.NoError(t, err)
		assert.Len(t, result.Groups, 2)
		assert.Len(t, result.Groups["TT"], 3)
	})

	t.Run("code list mirrors loader contract", func(t *testing.T) {
		result, err := reader.Load(domain.Many("TT", "ZZ"))
		require.NoError(t, err)
		assert.Len(t, result.Groups, 1)
		assert.Equal(t, []string{"ZZ"}, result.Dropped)

		_, err = reader.Load(domain.Many("ZZ"))
		require.ErrorIs(t, err, domain.ErrNotFound)

		_, err = reader.Load(domain.Many())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown single region", func(t *testing.T) {
		_, err := reader.Load(domain.One("ZZ"))
		require.ErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), `"ZZ"`)
	})
}

func TestWriter_SameDayRewriteIsByteIdentical(t *testing.T) {
	writer, _, _ := newArchiveFixtures(t)

	path, err := writer.Write(sampleRows())
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = writer.Write(sampleRows())
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReader_NeverFallsBackToPriorDay(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	yesterday := clockwork.NewFakeClockAt(archiveDay.AddDate(0, 0, -1))
	_, err := NewWriter(dir, yesterday, logger, metrics).Write(sampleRows())
	require.NoError(t, err)

	today := clockwork.NewFakeClockAt(archiveDay)
	_, err = NewReader(dir, today, logger).Load(domain.One("KA"))
	require.ErrorIs(t, err, domain.ErrStaleUnavailable)
}
