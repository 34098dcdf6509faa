package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

var today = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, f *fixture, recs ...[]domain.ForecastRecord) {
	t.Helper()
	for _, r := range recs {
		_, err := f.store.UpsertForecasts(context.Background(), r)
		require.NoError(t, err)
	}
}

func rateLimited() error { return &domain.RateLimitError{Err: errBoom} }

func TestGenerateSummary_AlwaysRateLimited(t *testing.T) {
	f := newFixture(t)
	seed(t, f, hourly("Berlin", today, nil))
	f.generator.errs = []error{rateLimited(), rateLimited(), rateLimited(), rateLimited(), rateLimited()}

	summary, ok, err := f.pipeline.GenerateSummary(context.Background(), "Berlin")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, summary.SummaryText)

	assert.Equal(t, 4, f.generator.calls)
	// no wait after the final rate limit
	want := []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}
	if diff := cmp.Diff(want, f.sleeps.delays); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 4.0, testutil.ToFloat64(f.metrics.SummaryAttempts.WithLabelValues("rate_limited")), 1e-9)
}

func TestGenerateSummary_NonRateLimitFailureStopsImmediately(t *testing.T) {
	f := newFixture(t)
	seed(t, f, hourly("Berlin", today, nil))
	f.generator.errs = []error{&domain.GenerationError{Err: errBoom}}

	_, ok, err := f.pipeline.GenerateSummary(context.Background(), "Berlin")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.generator.calls)
	assert.Empty(t, f.sleeps.delays)
}

func TestGenerateSummary_RecoversAfterRateLimit(t *testing.T) {
	f := newFixture(t)
	seed(t, f, hourly("Berlin", today, map[int]float64{5: 2.3}), hourly("Berlin", today.AddDate(0, 0, 1), nil))
	f.generator.errs = []error{rateLimited(), rateLimited()}

	summary, ok, err := f.pipeline.GenerateSummary(context.Background(), "Berlin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Mild week with showers on Tuesday.", summary.SummaryText)
	assert.Equal(t, today, summary.SummaryDate)
	assert.Equal(t, 3, f.generator.calls)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, time.Second}, f.sleeps.delays)

	require.NotEmpty(t, f.generator.prompts)
	prompt := f.generator.prompts[0]
	assert.Contains(t, prompt, "for Berlin")
	assert.Contains(t, prompt, "Date: 2026-10-19")
	assert.Contains(t, prompt, "Date: 2026-10-20")
	assert.Contains(t, prompt, "Total Precip: 2.3mm")
}

func TestGenerateSummary_DatedByLocalToday(t *testing.T) {
	f := newFixture(t)
	const plusTwo = 2 * 3600
	tomorrow := today.AddDate(0, 0, 1)
	seed(t, f, hourlyAt("Athens", today, plusTwo, nil), hourlyAt("Athens", tomorrow, plusTwo, map[int]float64{3: 1.2}))
	// 23:00 UTC is 01:00 on the 20th in Athens.
	f.clock.Advance(13*time.Hour + 30*time.Minute)

	summary, ok, err := f.pipeline.GenerateSummary(context.Background(), "Athens")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tomorrow, summary.SummaryDate)

	prompt := f.generator.prompts[0]
	assert.Contains(t, prompt, "Date: 2026-10-20")
	assert.NotContains(t, prompt, "Date: 2026-10-19")
	assert.Contains(t, prompt, "Total Precip: 1.2mm")

	_, err = f.pipeline.GenerateSummaries(context.Background())
	require.NoError(t, err)
	stored, err := f.store.Summary(context.Background(), "Athens", tomorrow)
	require.NoError(t, err)
	assert.Equal(t, "Mild week with showers on Tuesday.", stored.SummaryText)
}

func TestGenerateSummary_NoData(t *testing.T) {
	f := newFixture(t)
	// only data before the window
	seed(t, f, hourly("Berlin", today.AddDate(0, 0, -2), nil))

	_, ok, err := f.pipeline.GenerateSummary(context.Background(), "Berlin")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, f.generator.calls)
}

func TestGenerateSummary_CancelledDuringBackoff(t *testing.T) {
	f := newFixture(t)
	seed(t, f, hourly("Berlin", today, nil))
	f.generator.errs = []error{rateLimited()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := f.pipeline.GenerateSummary(ctx, "Berlin")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateSummaries_StoresPerCity(t *testing.T) {
	f := newFixture(t)
	seed(t, f, hourly("Berlin", today, nil), hourly("Vienna", today, nil))
	// Berlin is first alphabetically and fails outright; Vienna succeeds.
	f.generator.errs = []error{&domain.GenerationError{Err: errBoom}}

	report, err := f.pipeline.GenerateSummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Cities)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Skipped)

	got, err := f.store.SummariesForDate(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Vienna", got[0].City)
	assert.Equal(t, today, got[0].SummaryDate)
	assert.Equal(t, "Mild week with showers on Tuesday.", got[0].SummaryText)
}

func TestGenerateSummaries_OverwritesSameDay(t *testing.T) {
	f := newFixture(t)
	seed(t, f, hourly("Berlin", today, nil))

	_, err := f.pipeline.GenerateSummaries(context.Background())
	require.NoError(t, err)
	f.generator.text = "Updated outlook."
	_, err = f.pipeline.GenerateSummaries(context.Background())
	require.NoError(t, err)

	got, err := f.store.Summary(context.Background(), "Berlin", now)
	require.NoError(t, err)
	assert.Equal(t, "Updated outlook.", got.SummaryText)
}

func TestGenerateSummaries_StoreFailure(t *testing.T) {
	f := newFixture(t)
	seed(t, f, hourly("Berlin", today, nil))
	p := f.buildWith(&failingStore{Store: f.store, listErr: &domain.StoreError{Op: "list forecasts", Err: errBoom}}, nil)

	_, err := p.GenerateSummaries(context.Background())
	var serr *domain.StoreError
	assert.ErrorAs(t, err, &serr)
}
