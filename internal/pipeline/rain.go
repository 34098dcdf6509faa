package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
	"github.com/couchcryptid/weather-forecast-etl/internal/store"
)

// ComputeRainForecasts derives the daily rain windows of the forward window,
// attaches today's summaries for display and upserts all windows in one
// transaction. It returns the forecasts written; none means no rain is
// expected and nothing was written.
func (p *Pipeline) ComputeRainForecasts(ctx context.Context) (forecasts []domain.DailyRainForecast, err error) {
	start := p.clock.Now()
	defer func() { p.observe(StageRain, start, err) }()

	if err := p.store.Migrate(ctx); err != nil {
		return nil, err
	}

	now := p.clock.Now()
	after, before := domain.RainWindow(now, p.settings.ForecastDays)
	rainy, err := p.store.ListForecasts(ctx, store.ForecastFilter{After: after, Before: before, RainyOnly: true})
	if err != nil {
		return nil, err
	}

	forecasts = domain.AggregateRainWindows(rainy, now, p.settings.ForecastDays)
	if len(forecasts) == 0 {
		p.logger.Info("no rain expected in any location", "days", p.settings.ForecastDays)
		return nil, nil
	}

	p.attachSummaries(ctx, forecasts, now)

	n, err := p.store.UpsertRainForecasts(ctx, forecasts)
	if err != nil {
		return nil, err
	}
	p.metrics.RainForecastsWritten.Add(float64(n))
	for i := range forecasts {
		forecasts[i].CreatedAt = now.UTC()
	}

	p.logForecasts(forecasts)
	p.publish(ctx, forecasts)
	return forecasts, nil
}

// attachSummaries sets each forecast's summary to the one stored for its
// city's local today. Summaries are display context only; a failed lookup
// does not stop the stage.
func (p *Pipeline) attachSummaries(ctx context.Context, forecasts []domain.DailyRainForecast, now time.Time) {
	cache := make(map[string]string)
	for i := range forecasts {
		city := forecasts[i].City
		text, ok := cache[city]
		if !ok {
			text = p.todaysSummary(ctx, city, domain.LocalDate(now, forecasts[i].UTCOffset))
			cache[city] = text
		}
		forecasts[i].Summary = text
	}
}

func (p *Pipeline) todaysSummary(ctx context.Context, city string, today time.Time) string {
	s, err := p.store.Summary(ctx, city, today)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ""
	case err != nil:
		p.logger.Warn("summary lookup failed, continuing without summary", "city", city, "error", err)
		return ""
	}
	return s.SummaryText
}

func (p *Pipeline) logForecasts(forecasts []domain.DailyRainForecast) {
	current := ""
	for _, f := range forecasts {
		if f.City != current {
			current = f.City
			attrs := []any{"city", f.City}
			if f.Summary != "" {
				attrs = append(attrs, "summary", f.Summary)
			}
			p.logger.Info("rain forecast", attrs...)
		}
		p.logger.Info(f.DisplayLine(), "city", f.City)
	}
}

// publish is best effort: the store write has already committed.
func (p *Pipeline) publish(ctx context.Context, forecasts []domain.DailyRainForecast) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishRainForecasts(ctx, forecasts); err != nil {
		p.metrics.RainPublishErrors.Inc()
		p.logger.Error("publish rain forecasts failed", "error", err, "count", len(forecasts))
	}
}
