package pipeline

import (
	"context"

	"github.com/couchcryptid/weather-forecast-etl/internal/store"
)

// RunCleaning runs the store's cleaning passes and reports what changed.
func (p *Pipeline) RunCleaning(ctx context.Context) (report store.CleaningReport, err error) {
	start := p.clock.Now()
	defer func() { p.observe(StageClean, start, err) }()

	report, err = p.store.Clean(ctx, p.settings.Retention)

	// Counts of passes that committed before a failure are still real.
	p.metrics.CleanedRows.WithLabelValues(store.PassDuplicates).Add(float64(report.DuplicatesRemoved))
	p.metrics.CleanedRows.WithLabelValues(store.PassInvalid).Add(float64(report.InvalidRemoved))
	p.metrics.CleanedRows.WithLabelValues(store.PassRetention).Add(float64(report.OldRemoved))
	p.metrics.CleanedRows.WithLabelValues(store.PassNormalize).Add(float64(report.Rounded))

	if err != nil {
		return report, err
	}
	p.logger.Info("cleaning complete",
		"duplicates_removed", report.DuplicatesRemoved,
		"invalid_removed", report.InvalidRemoved,
		"old_removed", report.OldRemoved,
		"rounded", report.Rounded,
		"total_remaining", report.TotalRemaining,
	)
	return report, nil
}
