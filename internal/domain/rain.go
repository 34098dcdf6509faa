package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DailyRainForecast summarizes the rainy hours of one city on one local date.
// RainStart and RainEnd are instants; UTCOffset is the city's offset used to
// display them.
type DailyRainForecast struct {
	City             string          `json:"city"`
	ForecastDate     time.Time       `json:"forecast_date"`
	UTCOffset        int             `json:"utc_offset_seconds"`
	RainStart        time.Time       `json:"rain_start"`
	RainEnd          time.Time       `json:"rain_end"`
	TotalRain        decimal.Decimal `json:"total_rain"`
	MaxRainIntensity decimal.Decimal `json:"max_rain_intensity"`
	AvgTemperature   decimal.Decimal `json:"avg_temperature"`
	AvgWind          decimal.Decimal `json:"avg_wind"`
	CreatedAt        time.Time       `json:"created_at"`
	Summary          string          `json:"summary,omitempty"`
}

// RainWindow returns the timestamp range (after, before) a store scan must
// cover so AggregateRainWindows sees every hour of the forward window's local
// dates in any zone. before is one day past UTC today+days.
func RainWindow(now time.Time, days int) (after, before time.Time) {
	now = now.UTC()
	return now, StartOfDay(now).AddDate(0, 0, days+1)
}

// AggregateRainWindows groups rainy records after now by (city, local date),
// keeping dates before the city's local today+days. Groups whose total
// precipitation is not strictly positive are dropped. The result is ordered
// by city, then date.
func AggregateRainWindows(records []ForecastRecord, now time.Time, days int) []DailyRainForecast {
	type acc struct {
		offset        int
		start, end    time.Time
		total, max    decimal.Decimal
		tempSum, wSum decimal.Decimal
		count         int64
	}
	type key struct {
		city string
		date time.Time
	}

	groups := make(map[key]*acc)
	for _, r := range records {
		ts := r.Timestamp.UTC()
		if r.Precipitation <= 0 || !ts.After(now) {
			continue
		}
		date := r.LocalDate()
		if !date.Before(LocalDate(now, r.UTCOffset).AddDate(0, 0, days)) {
			continue
		}
		k := key{city: r.City, date: date}
		p := decimal.NewFromFloat(r.Precipitation)
		a, ok := groups[k]
		if !ok {
			a = &acc{offset: r.UTCOffset, start: ts, end: ts, max: p}
			groups[k] = a
		}
		if ts.Before(a.start) {
			a.start = ts
		}
		if ts.After(a.end) {
			a.end = ts
		}
		if p.GreaterThan(a.max) {
			a.max = p
		}
		a.total = a.total.Add(p)
		a.tempSum = a.tempSum.Add(decimal.NewFromFloat(r.Temperature))
		a.wSum = a.wSum.Add(decimal.NewFromFloat(r.Windspeed))
		a.count++
	}

	out := make([]DailyRainForecast, 0, len(groups))
	for k, a := range groups {
		if !a.total.IsPositive() {
			continue
		}
		n := decimal.NewFromInt(a.count)
		out = append(out, DailyRainForecast{
			City:             k.city,
			ForecastDate:     k.date,
			UTCOffset:        a.offset,
			RainStart:        a.start,
			RainEnd:          a.end,
			TotalRain:        a.total.Round(2),
			MaxRainIntensity: a.max.Round(2),
			AvgTemperature:   a.tempSum.Div(n).Round(2),
			AvgWind:          a.wSum.Div(n).Round(2),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		return out[i].ForecastDate.Before(out[j].ForecastDate)
	})
	return out
}

// DisplayLine renders the forecast as a one-line human readable report with
// the rain period in the city's local time.
func (f DailyRainForecast) DisplayLine() string {
	loc := Zone(f.UTCOffset)
	return fmt.Sprintf("%s: Rain period: %s - %s, Total rain: %smm, Max intensity: %smm, Avg temperature: %s°C, Avg wind: %skm/h",
		f.ForecastDate.Format(time.DateOnly),
		f.RainStart.In(loc).Format("15:04"),
		f.RainEnd.In(loc).Format("15:04"),
		f.TotalRain.StringFixed(1),
		f.MaxRainIntensity.StringFixed(1),
		f.AvgTemperature.StringFixed(1),
		f.AvgWind.StringFixed(1),
	)
}
