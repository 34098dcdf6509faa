// Command validate checks the integrity of a weather forecast database after
// a pipeline run: value bounds, two-decimal rounding, key uniqueness,
// retention, and that stored rain windows match the hourly rows they were
// derived from.
//
// Usage:
//
//	go run ./cmd/validate -database-url sqlite://weather.db -retention-days 30 -days 7
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
	"github.com/couchcryptid/weather-forecast-etl/internal/store"
)

// phase tracks pass/fail for a validation phase. Warnings are reported but
// do not fail the phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dsn := flag.String("database-url", os.Getenv("DATABASE_URL"), "database to validate (defaults to $DATABASE_URL)")
	retentionDays := flag.Int("retention-days", 30, "maximum age in days of stored forecast rows")
	days := flag.Int("days", 7, "forward window in days used for rain windows")
	flag.Parse()

	if *dsn == "" || *retentionDays < 1 || *days < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dsn, *retentionDays, *days, clockwork.NewRealClock()); code != 0 {
		os.Exit(code)
	}
}

func run(dsn string, retentionDays, days int, clk clockwork.Clock) int {
	ctx := context.Background()

	fmt.Println("=== Weather Forecast Integrity Validation ===")
	fmt.Println()

	st, err := store.Open(dsn, store.Options{Clock: clk})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer st.Close()

	records, err := st.ListForecasts(ctx, store.ForecastFilter{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load forecasts: %v\n", err)
		return 1
	}

	now := clk.Now().UTC()
	// Local today trails the UTC date by up to a day west of Greenwich.
	stored, err := st.ListRainForecasts(ctx, "", domain.StartOfDay(now).AddDate(0, 0, -1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load rain forecasts: %v\n", err)
		return 1
	}

	retention := time.Duration(retentionDays) * 24 * time.Hour
	phases := []*phase{
		validateBounds(records),
		validateRounding(records),
		validateKeys(records),
		validateRetention(records, now.Add(-retention)),
		validateRainWindows(records, stored, now, days),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if len(p.warnings) > 0 {
			status = fmt.Sprintf("\033[33mPASS (%d warnings)\033[0m", len(p.warnings))
		}
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d hourly forecasts, %d stored rain windows\n", len(records), len(stored))

	for _, p := range phases {
		if p.passed() && len(p.warnings) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		for _, w := range p.warnings {
			fmt.Printf("  [warn] %s\n", w)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateBounds(records []domain.ForecastRecord) *phase {
	p := &phase{name: "Phase 1: Value bounds"}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			p.errorf("%s %s: %v", r.City, r.Timestamp.Format(time.RFC3339), err)
		}
	}
	return p
}

func validateRounding(records []domain.ForecastRecord) *phase {
	p := &phase{name: "Phase 2: Two-decimal rounding"}
	for _, r := range records {
		for _, v := range []struct {
			field string
			value float64
		}{
			{"temperature", r.Temperature},
			{"precipitation", r.Precipitation},
			{"windspeed", r.Windspeed},
		} {
			if v.value != domain.Round2(v.value) {
				p.errorf("%s %s: %s=%v is not rounded to 2 decimals",
					r.City, r.Timestamp.Format(time.RFC3339), v.field, v.value)
			}
		}
	}
	return p
}

func validateKeys(records []domain.ForecastRecord) *phase {
	p := &phase{name: "Phase 3: (city, timestamp) uniqueness"}
	seen := make(map[domain.Key]int, len(records))
	for _, r := range records {
		seen[r.Key()]++
	}
	for k, n := range seen {
		if n > 1 {
			p.errorf("%s %s: %d rows", k.City, k.Timestamp.Format(time.RFC3339), n)
		}
	}
	return p
}

func validateRetention(records []domain.ForecastRecord, cutoff time.Time) *phase {
	p := &phase{name: "Phase 4: Retention"}
	for _, r := range records {
		if r.Timestamp.Before(cutoff) {
			p.errorf("%s %s: older than cutoff %s",
				r.City, r.Timestamp.Format(time.RFC3339), cutoff.Format(time.RFC3339))
		}
	}
	return p
}

// validateRainWindows recomputes the rain windows of the forward window from
// the hourly rows and compares them with what is stored. Dates are the
// city's local calendar days; stored rows outside the window are left alone.
//
// The rain stage upserts and never deletes, so a stored day whose hours are
// no longer rainy is a warning. So is a mismatch on local today, because
// today's window starts at now and rain that already fell was counted by an
// earlier run.
func validateRainWindows(records []domain.ForecastRecord, stored []domain.DailyRainForecast, now time.Time, days int) *phase {
	p := &phase{name: "Phase 5: Rain window consistency"}

	type dayKey struct {
		city string
		date string
	}
	isToday := func(f domain.DailyRainForecast) bool {
		return f.ForecastDate.Equal(domain.LocalDate(now, f.UTCOffset))
	}
	byKey := make(map[dayKey]domain.DailyRainForecast, len(stored))
	for _, f := range stored {
		today := domain.LocalDate(now, f.UTCOffset)
		if f.ForecastDate.Before(today) || !f.ForecastDate.Before(today.AddDate(0, 0, days)) {
			continue
		}
		byKey[dayKey{f.City, f.ForecastDate.Format(time.DateOnly)}] = f
	}

	for _, want := range domain.AggregateRainWindows(records, now, days) {
		k := dayKey{want.City, want.ForecastDate.Format(time.DateOnly)}
		got, ok := byKey[k]
		if !ok {
			p.errorf("%s %s: expected rain window not stored (total %smm)", k.city, k.date, want.TotalRain)
			continue
		}
		delete(byKey, k)

		report := p.errorf
		if isToday(want) {
			report = p.warnf
		}
		zone := domain.Zone(want.UTCOffset)
		switch {
		case !got.TotalRain.Equal(want.TotalRain):
			report("%s %s: total_rain stored %s, recomputed %s", k.city, k.date, got.TotalRain, want.TotalRain)
		case !got.MaxRainIntensity.Equal(want.MaxRainIntensity):
			report("%s %s: max_rain_intensity stored %s, recomputed %s", k.city, k.date, got.MaxRainIntensity, want.MaxRainIntensity)
		case !got.RainStart.Equal(want.RainStart) || !got.RainEnd.Equal(want.RainEnd):
			report("%s %s: rain period stored %s-%s, recomputed %s-%s", k.city, k.date,
				got.RainStart.In(zone).Format("15:04"), got.RainEnd.In(zone).Format("15:04"),
				want.RainStart.In(zone).Format("15:04"), want.RainEnd.In(zone).Format("15:04"))
		}
	}

	for k, f := range byKey {
		if isToday(f) {
			continue
		}
		p.warnf("%s %s: stored rain window (total %smm) has no rainy hours", k.city, k.date, f.TotalRain)
	}
	return p
}
