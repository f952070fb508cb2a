// Command rtjob runs one full R(t) estimation over every region and writes
// today's dated archive. It is intended to run once per day as a scheduled
// offline job, decoupled from the request-serving path: the server's R(t)
// reader only ever reads archives this job has written.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/covidmodeling/covid-data-service/internal/adapter/covidapi"
	"github.com/covidmodeling/covid-data-service/internal/config"
	"github.com/covidmodeling/covid-data-service/internal/dataset"
	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/observability"
	"github.com/covidmodeling/covid-data-service/internal/rt"
	"github.com/covidmodeling/covid-data-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, clock, logger, metrics); err != nil {
		logger.Error("estimation run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) error {
	cache, err := store.NewDailyCache(cfg.DataDir, cfg.CacheRetentionDays, clock, logger, metrics)
	if err != nil {
		return err
	}

	client := covidapi.NewClient(cfg.APIBaseURL, cfg.FetchTimeout, logger, metrics)
	loader := dataset.NewLoader(cache, client, logger, metrics)

	result, err := loader.Get(ctx, domain.All())
	if err != nil {
		return err
	}

	cutoff, err := cfg.RtCutoffDate()
	if err != nil {
		return err
	}

	estimator := rt.NewEstimator(rt.Config{
		SmoothingWindow: cfg.RtSmoothingWindow,
		RWindow:         cfg.RtWindow,
		Samples:         cfg.RtSamples,
		Cutoff:          cutoff,
	}, logger, metrics)

	logger.Info("computing, please wait")
	rows, err := estimator.Run(ctx, result.Tables)
	if err != nil {
		return err
	}

	writer := rt.NewWriter(cfg.DataDir, clock, logger, metrics)
	path, err := writer.Write(rows)
	if err != nil {
		return err
	}

	logger.Info("done", "archive", path)
	return nil
}
