package pipeline

import (
	"context"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
	"github.com/couchcryptid/weather-forecast-etl/internal/store"
)

// SummaryReport counts what GenerateSummaries did.
type SummaryReport struct {
	Cities  int
	Written int
	Skipped int
}

// GenerateSummaries produces and stores today's summary for every city that
// has forecasts, dated by the city's local calendar. A city whose summary cannot be generated is skipped; store
// failures end the stage.
func (p *Pipeline) GenerateSummaries(ctx context.Context) (report SummaryReport, err error) {
	start := p.clock.Now()
	defer func() { p.observe(StageSummarize, start, err) }()

	if p.generator == nil {
		return report, errNoGenerator
	}

	cities, err := p.store.DistinctCities(ctx)
	if err != nil {
		return report, err
	}
	report.Cities = len(cities)

	for _, city := range cities {
		summary, ok, err := p.GenerateSummary(ctx, city)
		if err != nil {
			return report, err
		}
		if !ok {
			report.Skipped++
			continue
		}
		if err := p.store.UpsertSummary(ctx, city, summary.SummaryDate, summary.SummaryText); err != nil {
			return report, err
		}
		p.metrics.SummariesWritten.Inc()
		report.Written++
	}

	p.logger.Info("summaries generated", "cities", report.Cities, "written", report.Written, "skipped", report.Skipped)
	return report, nil
}

// GenerateSummary builds the forward-window prompt for city and runs it
// through the retry state machine. The returned summary is dated with the
// city's local today. ok is false when the city has no data in the window or
// generation did not succeed; err is set only when the store read fails or
// ctx ends during a wait.
func (p *Pipeline) GenerateSummary(ctx context.Context, city string) (summary domain.WeatherSummary, ok bool, err error) {
	if p.generator == nil {
		return summary, false, errNoGenerator
	}

	now := p.clock.Now()
	from, to := domain.SummaryWindow(now, p.settings.ForecastDays)
	records, err := p.store.ListForecasts(ctx, store.ForecastFilter{City: city, From: from, Before: to})
	if err != nil {
		return summary, false, err
	}
	days := domain.AggregateDaily(records, now, p.settings.ForecastDays)
	if len(days) == 0 {
		p.logger.Warn("no weather data available", "city", city)
		return summary, false, nil
	}
	p.logger.Info("retrieved daily weather records", "city", city, "days", len(days))

	text, ok, err := p.generateWithBackoff(ctx, city, domain.SummaryPrompt(city, days))
	if err != nil || !ok {
		return summary, false, err
	}
	return domain.WeatherSummary{
		City:        city,
		SummaryDate: domain.LocalDate(now, records[0].UTCOffset),
		SummaryText: text,
	}, true, nil
}

func (p *Pipeline) generateWithBackoff(ctx context.Context, city, prompt string) (string, bool, error) {
	policy := p.settings.Backoff
	state := Start()

	for {
		text, genErr := p.generator.Generate(ctx, prompt)
		outcome := OutcomeOf(genErr)
		p.metrics.SummaryAttempts.WithLabelValues(outcome.String()).Inc()

		step := policy.Next(state, outcome)
		switch step.Next.Phase {
		case Succeeded:
			p.logger.Info("generated summary", "city", city, "attempt", state.Attempt)
		case Failed:
			p.logger.Error("summary generation failed", "city", city, "attempt", state.Attempt, "error", genErr)
		case Exhausted:
			p.logger.Error("rate limit persisted, giving up", "city", city, "attempts", state.Attempt)
		case Attempting:
			p.logger.Warn("rate limited, backing off", "city", city,
				"wait", step.Wait.String(), "next_attempt", step.Next.Attempt, "max_attempts", policy.MaxAttempts)
		}

		if err := p.sleep(ctx, step.Wait); err != nil {
			return "", false, err
		}
		if step.Next.Terminal() {
			return text, step.Next.Phase == Succeeded, nil
		}
		state = step.Next
	}
}
