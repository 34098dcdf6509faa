package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
	"github.com/couchcryptid/weather-forecast-etl/internal/pipeline"
)

var (
	cityA = domain.City{Name: "Munich", Latitude: 48.137154, Longitude: 11.576124}
	cityB = domain.City{Name: "Frankfurt", Latitude: 50.110924, Longitude: 8.682127}
	cityC = domain.City{Name: "Berlin", Latitude: 52.520008, Longitude: 13.404954}
)

func TestFetch_PartialFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	f.fetcher.records[cityA.Name] = hourly(cityA.Name, day, nil)
	f.fetcher.records[cityC.Name] = hourly(cityC.Name, day, nil)
	f.fetcher.errs[cityB.Name] = errors.New("connection refused")

	recs, err := f.pipeline.Fetch(context.Background(), []domain.City{cityA, cityB, cityC})
	require.NoError(t, err)
	require.Len(t, recs, 48)

	cities := map[string]int{}
	for _, r := range recs {
		cities[r.City]++
	}
	assert.Equal(t, map[string]int{"Munich": 24, "Berlin": 24}, cities)

	assert.InDelta(t, 1.0, testutil.ToFloat64(f.metrics.FetchResults.WithLabelValues("error")), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(f.metrics.FetchResults.WithLabelValues("success")), 1e-9)
	assert.InDelta(t, 48.0, testutil.ToFloat64(f.metrics.RecordsFetched), 1e-9)
}

func TestFetch_AllFail(t *testing.T) {
	f := newFixture(t)
	f.fetcher.errs[cityA.Name] = errBoom
	f.fetcher.errs[cityB.Name] = errBoom

	recs, err := f.pipeline.Fetch(context.Background(), []domain.City{cityA, cityB})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// barrierFetcher only returns once every city's fetch has started.
type barrierFetcher struct {
	started sync.WaitGroup
}

func (b *barrierFetcher) FetchForecast(_ context.Context, city domain.City) ([]domain.ForecastRecord, error) {
	b.started.Done()
	done := make(chan struct{})
	go func() { b.started.Wait(); close(done) }()
	select {
	case <-done:
		return []domain.ForecastRecord{{City: city.Name, Timestamp: now}}, nil
	case <-time.After(2 * time.Second):
		return nil, errors.New("fetches did not run concurrently")
	}
}

func TestFetch_RunsCitiesConcurrently(t *testing.T) {
	f := newFixture(t)
	bf := &barrierFetcher{}
	bf.started.Add(3)

	p := pipeline.New(pipeline.Deps{
		Store:   f.store,
		Fetcher: bf,
		Clock:   f.clock,
		Logger:  discardLogger(),
		Metrics: f.metrics,
	}, pipeline.Settings{})

	recs, err := p.Fetch(context.Background(), []domain.City{cityA, cityB, cityC})
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestFetch_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Fetch(ctx, []domain.City{cityA})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunETL_UpsertsFetchedRecords(t *testing.T) {
	day := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, cityA, cityB)
	f.fetcher.records[cityA.Name] = hourly(cityA.Name, day, nil)
	f.fetcher.records[cityB.Name] = hourly(cityB.Name, day, map[int]float64{3: 0.4})

	n, err := f.pipeline.RunETL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 48, n)

	count, err := f.store.CountForecasts(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 48, count)

	// a second run overwrites instead of duplicating
	n, err = f.pipeline.RunETL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 48, n)
	count, err = f.store.CountForecasts(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 48, count)
}

func TestRunETL_NothingFetched(t *testing.T) {
	f := newFixture(t, cityA)
	f.fetcher.errs[cityA.Name] = errBoom

	n, err := f.pipeline.RunETL(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunETL_StoreFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.fetcher.records[cityA.Name] = hourly(cityA.Name, now, nil)
	storeErr := &domain.StoreError{Op: "upsert forecasts", Err: errBoom}
	p := f.buildWith(&failingStore{Store: f.store, upsertErr: storeErr}, []domain.City{cityA})

	_, err := p.RunETL(context.Background())
	var serr *domain.StoreError
	require.ErrorAs(t, err, &serr)
	assert.InDelta(t, 1.0, testutil.ToFloat64(f.metrics.StageFailures.WithLabelValues(pipeline.StageETL)), 1e-9)
}
