// Command server runs the data service: it lazily fetches, caches, and
// normalizes the upstream dataset, and serves per-region views, R(t)
// estimates, and forecasts over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/covidmodeling/covid-data-service/internal/adapter/covidapi"
	httpadapter "github.com/covidmodeling/covid-data-service/internal/adapter/http"
	"github.com/covidmodeling/covid-data-service/internal/config"
	"github.com/covidmodeling/covid-data-service/internal/dataset"
	"github.com/covidmodeling/covid-data-service/internal/forecast"
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

	cache, err := store.NewDailyCache(cfg.DataDir, cfg.CacheRetentionDays, clock, logger, metrics)
	if err != nil {
		logger.Error("failed to open cache", "error", err)
		os.Exit(1)
	}

	client := covidapi.NewClient(cfg.APIBaseURL, cfg.FetchTimeout, logger, metrics)
	loader := dataset.NewLoader(cache, client, logger, metrics)
	rtReader := rt.NewReader(cfg.DataDir, clock, logger)
	forecasts := forecast.NewReader(cfg.DataDir)

	srv := httpadapter.NewServer(cfg.HTTPAddr, loader, rtReader, forecasts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
