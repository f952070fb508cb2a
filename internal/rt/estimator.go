// Package rt estimates the time-varying reproduction number R(t) from daily
// confirmed-case series and persists one dated, compressed result archive per
// run.
//
// The estimator follows the renewal-equation approach of Cori et al. (2013)
// with bootstrap resampling for uncertainty, the scheme epyestim applies to
// COVID-19 case data: Poisson-resample the reported counts, smooth each
// bootstrap draw, compute the Gamma posterior of R over a sliding window from
// the infection potential implied by the serial-interval distribution, then
// pool posterior draws across bootstraps into mean, variance, and quantiles.
package rt

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/observability"
)

// Gamma prior on R with mean 5 and standard deviation 5, the EpiEstim
// default. Wide enough to be uninformative at COVID case volumes.
const (
	priorShape = 1.0
	priorRate  = 0.2

	// poolDrawsPerSample is how many posterior draws are taken per bootstrap
	// sample when pooling the per-day uncertainty.
	poolDrawsPerSample = 100

	// caseEpsilon replaces zero or missing daily counts; the renewal
	// posterior requires strictly positive case series.
	caseEpsilon = 2.220446049250313e-16
)

// Config carries the estimation parameters.
type Config struct {
	SmoothingWindow int       // rolling-mean window over resampled cases, in days
	RWindow         int       // sliding estimation window, in days
	Samples         int       // bootstrap draws
	Cutoff          time.Time // rows before this date are discarded as warm-up
}

// ResultRow is one (region, date) estimate within the valid window.
type ResultRow struct {
	Region   string    `json:"state"`
	Date     time.Time `json:"date"`
	Cases    float64   `json:"cases"`  // smoothed case count used as estimator input
	Mean     float64   `json:"R_mean"` // posterior mean of R
	Variance float64   `json:"R_var"`
	Q025     float64   `json:"Q0.025"`
	Q25      float64   `json:"Q0.25"`
	Q50      float64   `json:"Q0.5"`
	Q75      float64   `json:"Q0.75"`
	Q975     float64   `json:"Q0.975"`
}

// Estimator runs the full-batch R(t) computation. It is a long-running,
// CPU-bound offline job: once started it runs to completion or failure, and a
// failure in any single region aborts the whole run so a partial result set
// is never written.
type Estimator struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEstimator creates an Estimator.
func NewEstimator(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Estimator {
	return &Estimator{cfg: cfg, logger: logger, metrics: metrics}
}

// Run estimates R(t) for every region in the dataset and returns all rows,
// regions concatenated in sorted code order, dates ascending within a region.
// The bootstrap RNG is seeded from the region code, so re-running over the
// same upstream data reproduces identical results.
func (e *Estimator) Run(ctx context.Context, tables map[string]*domain.Table) ([]ResultRow, error) {
	e.metrics.RtRunning.Set(1)
	defer e.metrics.RtRunning.Set(0)
	start := time.Now()

	codes := make([]string, 0, len(tables))
	for code := range tables {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var out []ResultRow
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := e.estimateRegion(code, tables[code])
		if err != nil {
			return nil, fmt.Errorf("estimate region %s: %w", code, err)
		}
		e.logger.Debug("region estimated", "region", code, "rows", len(rows))
		out = append(out, rows...)
	}

	e.metrics.RtRunDuration.Observe(time.Since(start).Seconds())
	e.logger.Info("estimation run complete", "regions", len(codes), "rows", len(out), "duration", time.Since(start))
	return out, nil
}

func (e *Estimator) estimateRegion(code string, table *domain.Table) ([]ResultRow, error) {
	startDay, cases, err := resampleDaily(table)
	if err != nil {
		return nil, err
	}

	si := serialInterval()
	shift := reportingDelayShift()
	n := len(cases)

	// First day with a full serial-interval history and estimation window.
	minT := len(si) - 1 + e.cfg.RWindow - 1
	if n <= minT {
		return nil, fmt.Errorf("%w: series of %d days is too short to estimate", domain.ErrInvariant, n)
	}

	seed := regionSeed(code)
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)

	type posterior struct{ shape, rate float64 }
	posts := make([][]posterior, e.cfg.Samples)
	smoothedSum := make([]float64, n)

	for s := 0; s < e.cfg.Samples; s++ {
		boot := poissonResample(cases, src)
		smooth := rollingMean(boot, e.cfg.SmoothingWindow)
		for i, v := range smooth {
			if v <= 0 {
				smooth[i] = caseEpsilon
			}
			smoothedSum[i] += smooth[i]
		}

		lambda := infectionPotential(smooth, si)
		posts[s] = make([]posterior, n)
		for t := minT; t < n; t++ {
			var sumCases, sumLambda float64
			for u := t - e.cfg.RWindow + 1; u <= t; u++ {
				sumCases += smooth[u]
				sumLambda += lambda[u]
			}
			posts[s][t] = posterior{shape: priorShape + sumCases, rate: priorRate + sumLambda}
		}
	}

	pool := make([]float64, 0, e.cfg.Samples*poolDrawsPerSample)
	var rows []ResultRow
	for t := minT; t < n; t++ {
		// R(t) is indexed by infection date: shift back by the mean
		// infection-to-reporting delay.
		date := startDay.AddDate(0, 0, t-shift)
		if date.Before(e.cfg.Cutoff) {
			continue
		}

		pool = pool[:0]
		for s := 0; s < e.cfg.Samples; s++ {
			g := distuv.Gamma{Alpha: posts[s][t].shape, Beta: posts[s][t].rate, Src: src}
			for d := 0; d < poolDrawsPerSample; d++ {
				pool = append(pool, g.Rand())
			}
		}
		sort.Float64s(pool)

		rows = append(rows, ResultRow{
			Region:   code,
			Date:     date,
			Cases:    smoothedSum[t] / float64(e.cfg.Samples),
			Mean:     stat.Mean(pool, nil),
			Variance: stat.Variance(pool, nil),
			Q025:     stat.Quantile(0.025, stat.Empirical, pool, nil),
			Q25:      stat.Quantile(0.25, stat.Empirical, pool, nil),
			Q50:      stat.Quantile(0.5, stat.Empirical, pool, nil),
			Q75:      stat.Quantile(0.75, stat.Empirical, pool, nil),
			Q975:     stat.Quantile(0.975, stat.Empirical, pool, nil),
		})
	}
	return rows, nil
}

// resampleDaily extracts the region's daily confirmed column on a strictly
// regular one-per-calendar-day cadence: gaps in the date range become slots,
// negative corrections are clipped to zero, and zero or missing counts are
// replaced with a tiny positive epsilon. Fails when the series carries no
// observed values at all.
func resampleDaily(table *domain.Table) (time.Time, []float64, error) {
	if len(table.Rows) == 0 {
		return time.Time{}, nil, fmt.Errorf("%w: empty series", domain.ErrInvariant)
	}

	start := table.Rows[0].Date
	end := table.Rows[len(table.Rows)-1].Date
	n := int(end.Sub(start).Hours()/24) + 1

	cases := make([]float64, n)
	for i := range cases {
		cases[i] = math.NaN()
	}
	for _, row := range table.Rows {
		idx := int(row.Date.Sub(start).Hours() / 24)
		cases[idx] = row.Value("delta.confirmed")
	}

	observed := 0
	for i, v := range cases {
		switch {
		case math.IsNaN(v):
			cases[i] = caseEpsilon
		case v <= 0:
			cases[i] = caseEpsilon
			observed++
		default:
			observed++
		}
	}
	if observed == 0 {
		return time.Time{}, nil, fmt.Errorf("%w: no confirmed-case values in series", domain.ErrInvariant)
	}
	return start, cases, nil
}

// poissonResample draws one bootstrap replicate of the case series, treating
// each day's count as the rate of an independent Poisson.
func poissonResample(cases []float64, src rand.Source) []float64 {
	out := make([]float64, len(cases))
	for i, c := range cases {
		out[i] = distuv.Poisson{Lambda: c, Src: src}.Rand()
	}
	return out
}

// rollingMean smooths with a centered window; partial windows at the edges
// average over what is available.
func rollingMean(series []float64, window int) []float64 {
	half := window / 2
	out := make([]float64, len(series))
	for i := range series {
		lo := max(0, i-half)
		hi := min(len(series)-1, i+half)
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += series[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// infectionPotential computes Λ(t) = Σ_s w(s)·I(t−s), the renewal equation's
// expected infection pressure, with w the discretized serial interval.
func infectionPotential(cases []float64, si []float64) []float64 {
	out := make([]float64, len(cases))
	for t := range cases {
		var sum float64
		for s := 1; s < len(si) && s <= t; s++ {
			sum += si[s] * cases[t-s]
		}
		out[t] = sum
	}
	return out
}

func regionSeed(code string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(code))
	return h.Sum64()
}
