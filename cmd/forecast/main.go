package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/water-forecast-service/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/water-forecast-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/water-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/water-forecast-service/internal/adapter/table"
	"github.com/couchcryptid/water-forecast-service/internal/config"
	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/couchcryptid/water-forecast-service/internal/observability"
	"github.com/couchcryptid/water-forecast-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Publishing is feature-flagged via KAFKA_ENABLED.
	var loaders []pipeline.Loader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, writer)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	clock := clockwork.NewRealClock()
	params := cfg.Params()
	p := pipeline.New(params, loaders, logger, metrics).WithClock(clock)
	forecaster := cache.NewCachedForecaster(p, cfg.CacheSize, cfg.CacheTTL, clock, metrics)

	var source pipeline.Extractor
	if cfg.DataFile != "" {
		source = table.FileSource{Path: cfg.DataFile, Sheet: cfg.DataSheet}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, forecaster, httpadapter.Options{
		Source:         source,
		UploadMaxBytes: cfg.UploadMaxBytes,
		RateLimitRPS:   cfg.RateLimitRPS,
		Clock:          clock,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Forecast the configured dataset once so readiness reflects its health.
	if source != nil {
		go func() {
			result, err := p.Run(ctx, source)
			if err != nil {
				logger.Error("startup forecast failed", "error", err, "kind", domain.ErrorKind(err), "data_file", cfg.DataFile)
				return
			}
			logger.Info("startup forecast ready",
				"data_file", cfg.DataFile,
				"fingerprint", result.Fingerprint,
				"end_year", params.ForecastEndYear,
			)
		}()
	} else {
		p.MarkReady()
		logger.Info("no DATA_FILE configured, serving uploads only")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
