package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

// Cleaning pass names, in execution order.
const (
	PassDuplicates = "duplicates"
	PassInvalid    = "invalid"
	PassRetention  = "retention"
	PassNormalize  = "normalize"
)

// CleaningReport counts the rows each pass touched.
type CleaningReport struct {
	DuplicatesRemoved int64 `json:"duplicates_removed"`
	InvalidRemoved    int64 `json:"invalid_removed"`
	OldRemoved        int64 `json:"old_removed"`
	Rounded           int64 `json:"rounded"`
	TotalRemaining    int64 `json:"total_remaining"`
}

const (
	deleteDuplicatesSQL = `DELETE FROM weather_forecasts
WHERE id NOT IN (
	SELECT MAX(id) FROM weather_forecasts GROUP BY city, timestamp
)`

	deleteInvalidSQL = `DELETE FROM weather_forecasts
WHERE temperature IS NULL OR temperature < -100 OR temperature > 100
	OR precipitation IS NULL OR precipitation < 0
	OR windspeed IS NULL OR windspeed < 0
	OR city IS NULL OR city = ''
	OR timestamp IS NULL`

	deleteOldSQL = `DELETE FROM weather_forecasts WHERE timestamp < ?`

	normalizeSQL = `UPDATE weather_forecasts SET
	temperature = ROUND(CAST(temperature AS NUMERIC), 2),
	precipitation = ROUND(CAST(precipitation AS NUMERIC), 2),
	windspeed = ROUND(CAST(windspeed AS NUMERIC), 2)
WHERE temperature <> ROUND(CAST(temperature AS NUMERIC), 2)
	OR precipitation <> ROUND(CAST(precipitation AS NUMERIC), 2)
	OR windspeed <> ROUND(CAST(windspeed AS NUMERIC), 2)`
)

// Clean runs the four maintenance passes in order: duplicate removal, invalid
// value removal, retention and precision normalization. Each pass commits in
// its own transaction. A failing pass is rolled back, later passes are skipped
// and a *domain.CleaningError naming the pass is returned along with the
// counts of the passes that did commit. Re-running Clean on converged data
// changes nothing.
func (s *Store) Clean(ctx context.Context, retention time.Duration) (CleaningReport, error) {
	var report CleaningReport
	cutoff := s.clock.Now().UTC().Add(-retention)

	passes := []struct {
		name string
		run  func(tx *gorm.DB) error
	}{
		{PassDuplicates, func(tx *gorm.DB) error {
			return execCount(tx, &report.DuplicatesRemoved, deleteDuplicatesSQL)
		}},
		{PassInvalid, func(tx *gorm.DB) error {
			return execCount(tx, &report.InvalidRemoved, deleteInvalidSQL)
		}},
		{PassRetention, func(tx *gorm.DB) error {
			return execCount(tx, &report.OldRemoved, deleteOldSQL, cutoff)
		}},
		{PassNormalize, func(tx *gorm.DB) error {
			if err := execCount(tx, &report.Rounded, normalizeSQL); err != nil {
				return err
			}
			return tx.Model(&forecastRow{}).Count(&report.TotalRemaining).Error
		}},
	}

	for _, p := range passes {
		if err := s.db.WithContext(ctx).Transaction(p.run); err != nil {
			return report, &domain.CleaningError{Pass: p.name, Err: storeErr("clean "+p.name, err)}
		}
	}
	return report, nil
}

func execCount(tx *gorm.DB, n *int64, sql string, args ...any) error {
	res := tx.Exec(sql, args...)
	if res.Error != nil {
		return res.Error
	}
	*n = res.RowsAffected
	return nil
}
