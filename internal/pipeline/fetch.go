package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

// CityResult is the outcome of one city's fetch. Exactly one of Records or
// Err is meaningful.
type CityResult struct {
	City    string
	Records []domain.ForecastRecord
	Err     error
}

// Fetch requests every city concurrently and returns the concatenated records
// of the cities that succeeded. A failing city is logged and left out; it never
// affects the others. An error is returned only when ctx ends before the
// fan-in completes.
func (p *Pipeline) Fetch(ctx context.Context, cities []domain.City) ([]domain.ForecastRecord, error) {
	results := make([]CityResult, len(cities))

	var g errgroup.Group
	for i, city := range cities {
		g.Go(func() error {
			recs, err := p.fetcher.FetchForecast(ctx, city)
			if err != nil {
				err = &domain.FetchError{City: city.Name, Err: err}
			}
			results[i] = CityResult{City: city.Name, Records: recs, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []domain.ForecastRecord
	for _, r := range results {
		if r.Err != nil {
			p.metrics.FetchResults.WithLabelValues("error").Inc()
			p.logger.Error("fetch failed, skipping city", "city", r.City, "error", r.Err)
			continue
		}
		p.metrics.FetchResults.WithLabelValues("success").Inc()
		p.logger.Debug("fetched forecast", "city", r.City, "records", len(r.Records))
		records = append(records, r.Records...)
	}
	p.metrics.RecordsFetched.Add(float64(len(records)))
	return records, nil
}

// RunETL fetches all configured cities and upserts the records as one batch.
// It returns the number of records written.
func (p *Pipeline) RunETL(ctx context.Context) (n int, err error) {
	start := p.clock.Now()
	defer func() { p.observe(StageETL, start, err) }()

	records, err := p.Fetch(ctx, p.settings.Cities)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		p.logger.Warn("no forecast records fetched")
		return 0, nil
	}

	n, err = p.store.UpsertForecasts(ctx, records)
	if err != nil {
		return 0, err
	}
	p.metrics.RecordsUpserted.Add(float64(n))
	p.logger.Info("forecasts upserted", "records", n, "duration", p.clock.Since(start).String())
	return n, nil
}
