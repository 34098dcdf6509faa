package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

type forecastRow struct {
	ID            uint      `gorm:"primaryKey"`
	City          string    `gorm:"size:100;not null;uniqueIndex:idx_forecast_city_ts,priority:1"`
	Timestamp     time.Time `gorm:"not null;uniqueIndex:idx_forecast_city_ts,priority:2"`
	UTCOffset     int       `gorm:"column:utc_offset_seconds;not null;default:0"`
	Temperature   float64   `gorm:"not null"`
	Precipitation float64   `gorm:"not null"`
	Windspeed     float64   `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (forecastRow) TableName() string { return "weather_forecasts" }

func forecastRowFrom(r domain.ForecastRecord, now time.Time) forecastRow {
	return forecastRow{
		City:          r.City,
		Timestamp:     r.Timestamp.UTC(),
		UTCOffset:     r.UTCOffset,
		Temperature:   r.Temperature,
		Precipitation: r.Precipitation,
		Windspeed:     r.Windspeed,
		CreatedAt:     now,
	}
}

func (r forecastRow) toDomain() domain.ForecastRecord {
	return domain.ForecastRecord{
		City:          r.City,
		Timestamp:     r.Timestamp.UTC(),
		UTCOffset:     r.UTCOffset,
		Temperature:   r.Temperature,
		Precipitation: r.Precipitation,
		Windspeed:     r.Windspeed,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type summaryRow struct {
	ID          uint      `gorm:"primaryKey"`
	City        string    `gorm:"size:50;not null;uniqueIndex:idx_summary_city_date,priority:1"`
	SummaryDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_summary_city_date,priority:2"`
	SummaryText string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (summaryRow) TableName() string { return "weather_summaries" }

func (r summaryRow) toDomain() domain.WeatherSummary {
	return domain.WeatherSummary{
		City:        r.City,
		SummaryDate: domain.StartOfDay(r.SummaryDate),
		SummaryText: r.SummaryText,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type rainRow struct {
	ID               uint            `gorm:"primaryKey"`
	City             string          `gorm:"size:100;not null;uniqueIndex:idx_rain_city_date,priority:1"`
	ForecastDate     time.Time       `gorm:"type:date;not null;uniqueIndex:idx_rain_city_date,priority:2"`
	UTCOffset        int             `gorm:"column:utc_offset_seconds;not null;default:0"`
	RainStart        time.Time       `gorm:"not null"`
	RainEnd          time.Time       `gorm:"not null"`
	TotalRain        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	MaxRainIntensity decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	AvgTemperature   decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	AvgWind          decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt        time.Time       `gorm:"not null"`
}

func (rainRow) TableName() string { return "daily_rain_forecasts" }

func rainRowFrom(f domain.DailyRainForecast, now time.Time) rainRow {
	return rainRow{
		City:             f.City,
		ForecastDate:     domain.StartOfDay(f.ForecastDate),
		UTCOffset:        f.UTCOffset,
		RainStart:        f.RainStart.UTC(),
		RainEnd:          f.RainEnd.UTC(),
		TotalRain:        f.TotalRain,
		MaxRainIntensity: f.MaxRainIntensity,
		AvgTemperature:   f.AvgTemperature,
		AvgWind:          f.AvgWind,
		CreatedAt:        now,
	}
}

func (r rainRow) toDomain() domain.DailyRainForecast {
	return domain.DailyRainForecast{
		City:             r.City,
		ForecastDate:     domain.StartOfDay(r.ForecastDate),
		UTCOffset:        r.UTCOffset,
		RainStart:        r.RainStart.UTC(),
		RainEnd:          r.RainEnd.UTC(),
		TotalRain:        r.TotalRain,
		MaxRainIntensity: r.MaxRainIntensity,
		AvgTemperature:   r.AvgTemperature,
		AvgWind:          r.AvgWind,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

func storeErr(op string, err error) error {
	return &domain.StoreError{Op: op, Err: err}
}
