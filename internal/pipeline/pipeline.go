// Package pipeline runs the forecast ETL stages: fetch and upsert, cleaning,
// summary generation and rain aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
	"github.com/couchcryptid/weather-forecast-etl/internal/observability"
	"github.com/couchcryptid/weather-forecast-etl/internal/store"
)

// Stage names used in logs and metrics.
const (
	StageETL       = "etl"
	StageClean     = "clean"
	StageSummarize = "summarize"
	StageRain      = "rain"
)

// WeatherFetcher returns the hourly forecast of one city.
type WeatherFetcher interface {
	FetchForecast(ctx context.Context, city domain.City) ([]domain.ForecastRecord, error)
}

// TextGenerator turns a prompt into summary text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RainPublisher forwards written rain forecasts downstream.
type RainPublisher interface {
	PublishRainForecasts(ctx context.Context, forecasts []domain.DailyRainForecast) error
}

// Store is the persistence the stages need.
type Store interface {
	Migrate(ctx context.Context) error
	UpsertForecasts(ctx context.Context, records []domain.ForecastRecord) (int, error)
	Clean(ctx context.Context, retention time.Duration) (store.CleaningReport, error)
	ListForecasts(ctx context.Context, f store.ForecastFilter) ([]domain.ForecastRecord, error)
	DistinctCities(ctx context.Context) ([]string, error)
	UpsertSummary(ctx context.Context, city string, date time.Time, text string) error
	Summary(ctx context.Context, city string, date time.Time) (domain.WeatherSummary, error)
	UpsertRainForecasts(ctx context.Context, forecasts []domain.DailyRainForecast) (int, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Deps are the collaborators of a Pipeline. Generator and Publisher may be nil
// when the corresponding stage is not run or publishing is disabled.
type Deps struct {
	Store     Store
	Fetcher   WeatherFetcher
	Generator TextGenerator
	Publisher RainPublisher
	Clock     clockwork.Clock
	Sleep     SleepFunc
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Settings are the tunables of a Pipeline.
type Settings struct {
	Cities       []domain.City
	Retention    time.Duration
	ForecastDays int
	Backoff      BackoffPolicy
}

// Pipeline runs the stages against explicit collaborators. Each stage reads
// what it needs from the store on every call.
type Pipeline struct {
	store     Store
	fetcher   WeatherFetcher
	generator TextGenerator
	publisher RainPublisher
	clock     clockwork.Clock
	sleep     SleepFunc
	logger    *slog.Logger
	metrics   *observability.Metrics
	settings  Settings
}

// New creates a Pipeline. A nil Clock uses real time; a nil Sleep waits on
// the clock. A nil Logger logs to slog.Default and nil Metrics are kept
// unregistered.
func New(deps Deps, settings Settings) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = clockSleep(clk)
	}
	if settings.ForecastDays <= 0 {
		settings.ForecastDays = 7
	}
	if settings.Retention <= 0 {
		settings.Retention = 30 * 24 * time.Hour
	}
	if settings.Backoff.MaxAttempts <= 0 {
		settings.Backoff = DefaultBackoff
	}
	return &Pipeline{
		store:     deps.Store,
		fetcher:   deps.Fetcher,
		generator: deps.Generator,
		publisher: deps.Publisher,
		clock:     clk,
		sleep:     sleep,
		logger:    logger,
		metrics:   metrics,
		settings:  settings,
	}
}

// Run executes etl, clean, summarize and rain in order. The first failing
// stage ends the run and its error is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "cities", len(p.settings.Cities))

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{StageETL, func(ctx context.Context) error { _, err := p.RunETL(ctx); return err }},
		{StageClean, func(ctx context.Context) error { _, err := p.RunCleaning(ctx); return err }},
		{StageSummarize, func(ctx context.Context) error { _, err := p.GenerateSummaries(ctx); return err }},
		{StageRain, func(ctx context.Context) error { _, err := p.ComputeRainForecasts(ctx); return err }},
	}
	for _, s := range stages {
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("stage %s: %w", s.name, err)
		}
	}

	p.logger.Info("pipeline finished")
	return nil
}

// observe records the duration and outcome of a stage.
func (p *Pipeline) observe(stage string, start time.Time, err error) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.StageFailures.WithLabelValues(stage).Inc()
		p.logger.Error("stage failed", "stage", stage, "error", err)
	}
}

// errNoGenerator is returned by GenerateSummaries when no TextGenerator was supplied.
var errNoGenerator = errors.New("text generator not configured")

func clockSleep(clk clockwork.Clock) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return nil
		}
		timer := clk.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.Chan():
			return nil
		}
	}
}
