// Command etl runs the weather forecast pipeline.
//
// Usage:
//
//	etl [run|etl|clean|summarize|rain|serve]
//
// run executes every stage in order and is the default. The single-stage
// commands run one stage against the current database. serve starts the
// read-only HTTP API and blocks until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/couchcryptid/weather-forecast-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-forecast-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-forecast-etl/internal/adapter/openai"
	"github.com/couchcryptid/weather-forecast-etl/internal/adapter/openmeteo"
	"github.com/couchcryptid/weather-forecast-etl/internal/config"
	"github.com/couchcryptid/weather-forecast-etl/internal/observability"
	"github.com/couchcryptid/weather-forecast-etl/internal/pipeline"
	"github.com/couchcryptid/weather-forecast-etl/internal/store"
)

var commands = map[string]bool{
	"run": true, "etl": true, "clean": true, "summarize": true, "rain": true, "serve": true,
}

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [run|etl|clean|summarize|rain|serve]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "run"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	if !commands[command] || flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	// A missing .env is normal outside local development.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat).
		With("run_id", uuid.NewString(), "command", command)
	slog.SetDefault(logger)

	if err := run(cfg, command, logger); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, command string, logger *slog.Logger) error {
	clk := clockwork.NewRealClock()

	st, err := store.Open(cfg.DatabaseURL, store.Options{BatchSize: cfg.BatchSize, Clock: clk})
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	if command == "serve" {
		return serve(ctx, cfg, st, clk, logger)
	}

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetricsFor(registry)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Store:   st,
		Fetcher: openmeteo.NewClient(cfg.WeatherAPIURL, cfg.WeatherTimeout, logger),
		Clock:   clk,
		Logger:  logger,
		Metrics: metrics,
	}

	if command == "run" || command == "summarize" {
		if err := cfg.RequireOpenAI(); err != nil {
			return err
		}
		deps.Generator = openai.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAITimeout)
	}

	if (command == "run" || command == "rain") && cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		deps.Publisher = publisher
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaRainTopic)
	}

	p := pipeline.New(deps, pipeline.Settings{
		Cities:       cfg.Cities,
		Retention:    cfg.Retention(),
		ForecastDays: cfg.ForecastDays,
		Backoff: pipeline.BackoffPolicy{
			BaseDelay:   cfg.SummaryBaseDelay,
			MaxAttempts: cfg.SummaryMaxAttempts,
			Throttle:    cfg.SummaryThrottle,
		},
	})

	runErr := runCommand(ctx, p, command)
	pushMetrics(cfg, command, registry, logger)
	return runErr
}

func runCommand(ctx context.Context, p *pipeline.Pipeline, command string) error {
	switch command {
	case "etl":
		_, err := p.RunETL(ctx)
		return err
	case "clean":
		_, err := p.RunCleaning(ctx)
		return err
	case "summarize":
		_, err := p.GenerateSummaries(ctx)
		return err
	case "rain":
		_, err := p.ComputeRainForecasts(ctx)
		return err
	default:
		return p.Run(ctx)
	}
}

// pushMetrics is best effort; a batch run's outcome does not depend on it.
func pushMetrics(cfg *config.Config, command string, g prometheus.Gatherer, logger *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := observability.Push(ctx, cfg.PushgatewayURL, command, g); err != nil {
		logger.Warn("metrics push failed", "error", err)
	}
}

func serve(ctx context.Context, cfg *config.Config, st *store.Store, clk clockwork.Clock, logger *slog.Logger) error {
	srv := httpadapter.NewServer(cfg.HTTPAddr, storeReadiness{st}, st, clk, logger)

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// storeReadiness reports ready once the database answers a ping.
type storeReadiness struct {
	store *store.Store
}

func (r storeReadiness) CheckReadiness(ctx context.Context) error {
	return r.store.Ping(ctx)
}
