package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

var rainConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "city"}, {Name: "forecast_date"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"utc_offset_seconds", "rain_start", "rain_end", "total_rain", "max_rain_intensity",
		"avg_temperature", "avg_wind", "created_at",
	}),
}

// UpsertRainForecasts writes all forecasts in one transaction, overwriting
// rows with the same (city, forecast_date). Either every row is written or
// none is.
func (s *Store) UpsertRainForecasts(ctx context.Context, forecasts []domain.DailyRainForecast) (int, error) {
	if len(forecasts) == 0 {
		return 0, nil
	}

	now := s.clock.Now().UTC()
	rows := make([]rainRow, len(forecasts))
	for i, f := range forecasts {
		rows[i] = rainRowFrom(f, now)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(rainConflict).CreateInBatches(&rows, s.batchSize).Error
	})
	if err != nil {
		return 0, storeErr("upsert rain forecasts", err)
	}
	return len(rows), nil
}

// ListRainForecasts returns stored rain windows dated on or after from,
// optionally restricted to city, ordered by city and date.
func (s *Store) ListRainForecasts(ctx context.Context, city string, from time.Time) ([]domain.DailyRainForecast, error) {
	q := s.db.WithContext(ctx).Model(&rainRow{})
	if city != "" {
		q = q.Where("city = ?", city)
	}
	if !from.IsZero() {
		q = q.Where("forecast_date >= ?", domain.StartOfDay(from))
	}

	var rows []rainRow
	if err := q.Order("city").Order("forecast_date").Find(&rows).Error; err != nil {
		return nil, storeErr("list rain forecasts", err)
	}
	out := make([]domain.DailyRainForecast, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
