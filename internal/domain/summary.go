package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// WeatherSummary is the generated natural-language outlook for a city on a date.
type WeatherSummary struct {
	City        string    `json:"city"`
	SummaryDate time.Time `json:"summary_date"`
	SummaryText string    `json:"summary_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// DailyStats aggregates one local day of a city's forecast.
type DailyStats struct {
	Date        time.Time
	AvgTemp     float64
	MinTemp     float64
	MaxTemp     float64
	TotalPrecip float64
	AvgWind     float64
	Hours       int
}

// SummaryWindow returns the timestamp range [from, to) a store scan must
// cover for AggregateDaily. It spans one extra UTC day on each side of
// [today, today+days) so every zone's local days are included.
func SummaryWindow(now time.Time, days int) (from, to time.Time) {
	today := StartOfDay(now)
	return today.AddDate(0, 0, -1), today.AddDate(0, 0, days+1)
}

// AggregateDaily computes per-day statistics over records whose local date
// falls in [local today, local today+days). Days are ordered ascending.
// Records for other cities must be filtered out by the caller.
func AggregateDaily(records []ForecastRecord, now time.Time, days int) []DailyStats {
	byDay := make(map[time.Time]*DailyStats)
	tempSum := make(map[time.Time]float64)
	windSum := make(map[time.Time]float64)

	for _, r := range records {
		day := r.LocalDate()
		today := LocalDate(now, r.UTCOffset)
		if day.Before(today) || !day.Before(today.AddDate(0, 0, days)) {
			continue
		}
		s, ok := byDay[day]
		if !ok {
			s = &DailyStats{Date: day, MinTemp: r.Temperature, MaxTemp: r.Temperature}
			byDay[day] = s
		}
		s.MinTemp = min(s.MinTemp, r.Temperature)
		s.MaxTemp = max(s.MaxTemp, r.Temperature)
		s.TotalPrecip += r.Precipitation
		tempSum[day] += r.Temperature
		windSum[day] += r.Windspeed
		s.Hours++
	}

	out := make([]DailyStats, 0, len(byDay))
	for day, s := range byDay {
		s.AvgTemp = tempSum[day] / float64(s.Hours)
		s.AvgWind = windSum[day] / float64(s.Hours)
		s.TotalPrecip = Round2(s.TotalPrecip)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// FormatWeatherText renders daily statistics one line per day for the prompt.
func FormatWeatherText(days []DailyStats) string {
	lines := make([]string, 0, len(days))
	for _, d := range days {
		lines = append(lines, fmt.Sprintf(
			"Date: %s, Avg Temp: %.1f°C (Min: %.1f°C, Max: %.1f°C), Total Precip: %.1fmm, Avg Wind: %.1fkm/h",
			d.Date.Format(time.DateOnly), d.AvgTemp, d.MinTemp, d.MaxTemp, d.TotalPrecip, d.AvgWind,
		))
	}
	return strings.Join(lines, "\n")
}

// SummaryPrompt builds the user prompt asking for a short outlook of city.
func SummaryPrompt(city string, days []DailyStats) string {
	return fmt.Sprintf("Based on this 7-day weather forecast for %s, create a brief, natural-sounding summary "+
		"highlighting the 7-day weather pattern, significant changes, and notable conditions:\n\n%s\n\n"+
		"Please provide a concise, human-friendly summary in 3-4 sentences.",
		city, FormatWeatherText(days))
}
