package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

var summaryConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "city"}, {Name: "summary_date"}},
	DoUpdates: clause.AssignmentColumns([]string{"summary_text", "created_at"}),
}

// UpsertSummary stores text as the summary of city for date, replacing any
// summary already stored for that day.
func (s *Store) UpsertSummary(ctx context.Context, city string, date time.Time, text string) error {
	row := summaryRow{
		City:        city,
		SummaryDate: domain.StartOfDay(date),
		SummaryText: text,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Clauses(summaryConflict).Create(&row).Error; err != nil {
		return storeErr("upsert summary", err)
	}
	return nil
}

// SummariesForDate returns every summary stored for date ordered by city.
func (s *Store) SummariesForDate(ctx context.Context, date time.Time) ([]domain.WeatherSummary, error) {
	var rows []summaryRow
	err := s.db.WithContext(ctx).
		Where("summary_date = ?", domain.StartOfDay(date)).
		Order("city").
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("list summaries", err)
	}
	out := make([]domain.WeatherSummary, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// Summary returns the summary of city for date, or domain.ErrNotFound.
func (s *Store) Summary(ctx context.Context, city string, date time.Time) (domain.WeatherSummary, error) {
	var row summaryRow
	err := s.db.WithContext(ctx).
		Where("city = ? AND summary_date = ?", city, domain.StartOfDay(date)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.WeatherSummary{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.WeatherSummary{}, storeErr("get summary", err)
	}
	return row.toDomain(), nil
}
