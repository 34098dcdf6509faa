package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
	"github.com/couchcryptid/weather-forecast-etl/internal/observability"
	"github.com/couchcryptid/weather-forecast-etl/internal/pipeline"
	"github.com/couchcryptid/weather-forecast-etl/internal/store"
)

var now = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

// --- mocks ---

type mockFetcher struct {
	records map[string][]domain.ForecastRecord
	errs    map[string]error
}

func (m *mockFetcher) FetchForecast(_ context.Context, city domain.City) ([]domain.ForecastRecord, error) {
	if err := m.errs[city.Name]; err != nil {
		return nil, err
	}
	return m.records[city.Name], nil
}

// mockGenerator returns errs[i] on call i, then succeeds with text.
type mockGenerator struct {
	mu      sync.Mutex
	errs    []error
	text    string
	calls   int
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	return m.text, nil
}

type mockPublisher struct {
	published []domain.DailyRainForecast
	err       error
	calls     int
}

func (m *mockPublisher) PublishRainForecasts(_ context.Context, forecasts []domain.DailyRainForecast) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, forecasts...)
	return nil
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	if d > 0 {
		s.delays = append(s.delays, d)
	}
	return ctx.Err()
}

// failingStore overrides selected store operations with an error.
type failingStore struct {
	pipeline.Store
	upsertErr  error
	listErr    error
	summaryErr error
}

func (f *failingStore) UpsertForecasts(ctx context.Context, records []domain.ForecastRecord) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	return f.Store.UpsertForecasts(ctx, records)
}

func (f *failingStore) ListForecasts(ctx context.Context, filter store.ForecastFilter) ([]domain.ForecastRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListForecasts(ctx, filter)
}

func (f *failingStore) Summary(ctx context.Context, city string, date time.Time) (domain.WeatherSummary, error) {
	if f.summaryErr != nil {
		return domain.WeatherSummary{}, f.summaryErr
	}
	return f.Store.Summary(ctx, city, date)
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, clk clockwork.Clock) *store.Store {
	t.Helper()
	s, err := store.Open("sqlite://"+filepath.Join(t.TempDir(), "weather.db"), store.Options{Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type fixture struct {
	pipeline  *pipeline.Pipeline
	store     *store.Store
	fetcher   *mockFetcher
	generator *mockGenerator
	publisher *mockPublisher
	sleeps    *sleepRecorder
	metrics   *observability.Metrics
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T, cities ...domain.City) *fixture {
	t.Helper()
	clk := clockwork.NewFakeClockAt(now)
	f := &fixture{
		store:     newTestStore(t, clk),
		fetcher:   &mockFetcher{records: map[string][]domain.ForecastRecord{}, errs: map[string]error{}},
		generator: &mockGenerator{text: "Mild week with showers on Tuesday."},
		publisher: &mockPublisher{},
		sleeps:    &sleepRecorder{},
		metrics:   observability.NewMetricsForTesting(),
		clock:     clk,
	}
	f.pipeline = f.buildWith(f.store, cities)
	return f
}

func (f *fixture) buildWith(s pipeline.Store, cities []domain.City) *pipeline.Pipeline {
	return pipeline.New(pipeline.Deps{
		Store:     s,
		Fetcher:   f.fetcher,
		Generator: f.generator,
		Publisher: f.publisher,
		Clock:     f.clock,
		Sleep:     f.sleeps.Sleep,
		Logger:    discardLogger(),
		Metrics:   f.metrics,
	}, pipeline.Settings{
		Cities:       cities,
		Retention:    30 * 24 * time.Hour,
		ForecastDays: 7,
		Backoff:      pipeline.DefaultBackoff,
	})
}

// hourly returns 24 records for city starting at day with the given
// precipitation per hour index.
func hourly(city string, day time.Time, precip map[int]float64) []domain.ForecastRecord {
	recs := make([]domain.ForecastRecord, 0, 24)
	for h := 0; h < 24; h++ {
		recs = append(recs, domain.ForecastRecord{
			City:          city,
			Timestamp:     day.Add(time.Duration(h) * time.Hour),
			Temperature:   10 + float64(h%5),
			Precipitation: precip[h],
			Windspeed:     12,
			CreatedAt:     now,
		})
	}
	return recs
}

// hourlyAt is hourly for a city offsetSeconds east of UTC: localDay is the
// local midnight the 24 hours start at.
func hourlyAt(city string, localDay time.Time, offsetSeconds int, precip map[int]float64) []domain.ForecastRecord {
	recs := hourly(city, localDay.Add(-time.Duration(offsetSeconds)*time.Second), precip)
	for i := range recs {
		recs[i].UTCOffset = offsetSeconds
	}
	return recs
}

var errBoom = errors.New("boom")
