package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

var forecastConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "city"}, {Name: "timestamp"}},
	DoUpdates: clause.AssignmentColumns([]string{"utc_offset_seconds", "temperature", "precipitation", "windspeed", "created_at"}),
}

// UpsertForecasts writes records in pages of the configured batch size inside
// one transaction. Existing (city, timestamp) rows are overwritten and their
// created_at refreshed. When a key occurs more than once in records the last
// occurrence wins. Empty input performs no writes and returns 0.
func (s *Store) UpsertForecasts(ctx context.Context, records []domain.ForecastRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := s.clock.Now().UTC()
	rows := collapseForecasts(records, now)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(forecastConflict).CreateInBatches(&rows, s.batchSize).Error
	})
	if err != nil {
		return 0, storeErr("upsert forecasts", err)
	}
	return len(rows), nil
}

// collapseForecasts keeps the last record per key, preserving first-seen order.
// A single INSERT ... ON CONFLICT statement cannot touch the same row twice.
func collapseForecasts(records []domain.ForecastRecord, now time.Time) []forecastRow {
	index := make(map[domain.Key]int, len(records))
	rows := make([]forecastRow, 0, len(records))
	for _, r := range records {
		row := forecastRowFrom(r, now)
		if i, ok := index[r.Key()]; ok {
			rows[i] = row
			continue
		}
		index[r.Key()] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

// ForecastFilter narrows ListForecasts. Zero fields do not filter.
type ForecastFilter struct {
	City string
	// From is an inclusive lower bound on timestamp.
	From time.Time
	// After is an exclusive lower bound on timestamp.
	After time.Time
	// Before is an exclusive upper bound on timestamp.
	Before    time.Time
	RainyOnly bool
}

// ListForecasts returns forecasts matching f ordered by city and timestamp.
func (s *Store) ListForecasts(ctx context.Context, f ForecastFilter) ([]domain.ForecastRecord, error) {
	q := s.db.WithContext(ctx).Model(&forecastRow{})
	if f.City != "" {
		q = q.Where("city = ?", f.City)
	}
	if !f.From.IsZero() {
		q = q.Where("timestamp >= ?", f.From.UTC())
	}
	if !f.After.IsZero() {
		q = q.Where("timestamp > ?", f.After.UTC())
	}
	if !f.Before.IsZero() {
		q = q.Where("timestamp < ?", f.Before.UTC())
	}
	if f.RainyOnly {
		q = q.Where("precipitation > 0")
	}

	var rows []forecastRow
	if err := q.Order("city").Order("timestamp").Find(&rows).Error; err != nil {
		return nil, storeErr("list forecasts", err)
	}
	out := make([]domain.ForecastRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// DistinctCities returns every city with at least one forecast row.
func (s *Store) DistinctCities(ctx context.Context) ([]string, error) {
	var cities []string
	err := s.db.WithContext(ctx).Model(&forecastRow{}).
		Distinct("city").Order("city").Pluck("city", &cities).Error
	if err != nil {
		return nil, storeErr("distinct cities", err)
	}
	return cities, nil
}

// CountForecasts returns the number of rows in weather_forecasts.
func (s *Store) CountForecasts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&forecastRow{}).Count(&n).Error; err != nil {
		return 0, storeErr("count forecasts", err)
	}
	return n, nil
}
