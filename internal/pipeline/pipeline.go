package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/couchcryptid/water-forecast-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
	maxLoadAttempts = 5
)

// Extractor reads the historical dataset from its source.
type Extractor interface {
	Extract(ctx context.Context) (domain.RawTable, error)
}

// Loader publishes a completed forecast to a destination.
type Loader interface {
	Load(ctx context.Context, result domain.Result) error
}

// Forecaster turns a raw dataset into a forecast result.
type Forecaster interface {
	Forecast(ctx context.Context, table domain.RawTable) (domain.Result, error)
}

// Pipeline orchestrates the extract-forecast-load flow.
type Pipeline struct {
	params  domain.Params
	loaders []Loader
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	ready   atomic.Bool
}

// New creates a Pipeline with the given parameters, destinations and observability.
func New(params domain.Params, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		params:  params,
		loaders: loaders,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
}

// WithClock swaps the time source used for durations and retry sleeps.
func (p *Pipeline) WithClock(c clockwork.Clock) *Pipeline {
	p.clock = c
	return p
}

// Params returns the forecast parameters the pipeline runs with.
func (p *Pipeline) Params() domain.Params {
	return p.params
}

// CheckReadiness returns nil once a forecast has completed successfully,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no forecast has completed yet")
	}
	return nil
}

// MarkReady flags the pipeline ready without a forecast. Used when no startup
// dataset is configured and the service only serves uploads.
func (p *Pipeline) MarkReady() {
	p.ready.Store(true)
	p.metrics.PipelineReady.Set(1)
}

// Forecast runs the pure forecast pipeline on table and records the outcome.
func (p *Pipeline) Forecast(ctx context.Context, table domain.RawTable) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}

	start := p.clock.Now()
	result, err := domain.Run(table, p.params)
	p.metrics.ForecastDuration.Observe(p.clock.Since(start).Seconds())

	if err != nil {
		p.metrics.ForecastRuns.WithLabelValues("error").Inc()
		p.metrics.ForecastErrors.WithLabelValues(domain.ErrorKind(err)).Inc()
		if domain.IsInputError(err) {
			p.logger.Warn("forecast rejected input", "error", err, "kind", domain.ErrorKind(err))
		} else {
			p.logger.Error("forecast failed", "error", err, "kind", domain.ErrorKind(err))
		}
		return domain.Result{}, err
	}

	for _, w := range result.Warnings {
		p.metrics.HorizonMismatch.Inc()
		p.logger.Warn("forecast horizons differ, truncating",
			"population", w.Population,
			"per_capita", w.PerCapita,
		)
	}
	p.recordModel(domain.SeriesPopulation, result.PopulationModel)
	p.recordModel(domain.SeriesPerCapita, result.PerCapitaModel)

	p.metrics.ForecastRuns.WithLabelValues("success").Inc()
	p.ready.Store(true)
	p.metrics.PipelineReady.Set(1)

	attrs := []any{"historical", len(result.Historical), "forecasts", len(result.Forecasts)}
	if n := len(result.Series); n > 0 {
		attrs = append(attrs, "first_year", result.Series[0].Year, "last_year", result.Series[n-1].Year)
	}
	p.logger.Info("forecast complete", attrs...)
	return result, nil
}

func (p *Pipeline) recordModel(series string, m domain.HoltModel) {
	p.metrics.SmoothingWeight.WithLabelValues(series, "alpha").Set(m.Alpha)
	p.metrics.SmoothingWeight.WithLabelValues(series, "beta").Set(m.Beta)
	p.logger.Debug("holt model fitted",
		"series", series,
		"alpha", m.Alpha,
		"beta", m.Beta,
		"sse", m.SSE,
		"observations", m.Observations,
	)
}

// Run extracts the dataset, forecasts it and publishes the result to every
// loader. Input and model errors are returned as-is; only loads are retried.
func (p *Pipeline) Run(ctx context.Context, e Extractor) (domain.Result, error) {
	table, err := e.Extract(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("extract dataset: %w", err)
	}

	result, err := p.Forecast(ctx, table)
	if err != nil {
		return domain.Result{}, err
	}

	if err := p.Publish(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// Publish hands result to every loader, retrying each with exponential backoff.
func (p *Pipeline) Publish(ctx context.Context, result domain.Result) error {
	for _, l := range p.loaders {
		if err := p.loadWithRetry(ctx, l, result); err != nil {
			return err
		}
		p.metrics.RecordsPublished.Add(float64(len(result.Series)))
	}
	return nil
}

func (p *Pipeline) loadWithRetry(ctx context.Context, l Loader, result domain.Result) error {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := l.Load(ctx, result)
		if err == nil {
			return nil
		}
		p.metrics.PublishErrors.Inc()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= maxLoadAttempts {
			return fmt.Errorf("load forecast after %d attempts: %w", attempt, err)
		}

		p.logger.Warn("load forecast failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		if !sleepWithContext(ctx, p.clock, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
