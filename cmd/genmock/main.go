// Command genmock generates synthetic Open-Meteo hourly payloads for the
// configured cities. The payloads can be written as JSON fixtures, loaded
// into a database so clean, summarize and rain can run offline, or both.
// Output is deterministic for a given -seed and -start.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir testdata/openmeteo \
//	  -database-url sqlite://weather.db \
//	  -start 2026-10-19 -days 7 -seed 42
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/weather-forecast-etl/internal/config"
	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
	"github.com/couchcryptid/weather-forecast-etl/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory for per-city Open-Meteo JSON fixtures")
	dsn := flag.String("database-url", "", "database to load the generated forecasts into")
	citiesFile := flag.String("cities-file", "", "YAML city list (defaults to the built-in cities)")
	start := flag.String("start", time.Now().UTC().Format(time.DateOnly), "first forecast day (YYYY-MM-DD, UTC)")
	days := flag.Int("days", 7, "number of forecast days")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *outDir == "" && *dsn == "" {
		flag.Usage()
		return fmt.Errorf("at least one of -out-dir or -database-url is required")
	}
	if *days < 1 {
		return fmt.Errorf("-days must be positive")
	}
	startDay, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	cities := config.DefaultCities
	if *citiesFile != "" {
		if cities, err = config.LoadCities(*citiesFile); err != nil {
			return err
		}
	}

	payloads := generate(cities, startDay, *days, *seed)

	if *outDir != "" {
		if err := writeFixtures(*outDir, cities, payloads); err != nil {
			return err
		}
	}
	if *dsn != "" {
		n, err := load(context.Background(), *dsn, cities, payloads)
		if err != nil {
			return err
		}
		log.Printf("loaded %d forecast rows", n)
	}
	return nil
}

// generate builds one hourly payload per city covering days full UTC days
// from start. Rain arrives in short showers of a few hours.
func generate(cities []domain.City, start time.Time, days int, seed uint64) map[string]domain.HourlyResponse {
	rng := rand.New(rand.NewPCG(seed, uint64(len(cities))))
	hours := days * 24
	out := make(map[string]domain.HourlyResponse, len(cities))

	for _, c := range cities {
		series := domain.HourlySeries{
			Time:          make([]string, hours),
			Temperature:   make([]*float64, hours),
			Precipitation: make([]*float64, hours),
			Windspeed:     make([]*float64, hours),
		}
		// Colder further north.
		base := 25 - 0.35*c.Latitude
		showerLeft := 0

		for h := range hours {
			ts := start.Add(time.Duration(h) * time.Hour)
			series.Time[h] = ts.Format("2006-01-02T15:04")

			diurnal := 4 * math.Sin(2*math.Pi*float64(ts.Hour()-9)/24)
			temp := domain.Round2(base + diurnal + rng.NormFloat64())

			if showerLeft == 0 && rng.Float64() < 0.03 {
				showerLeft = 1 + rng.IntN(4)
			}
			precip := 0.0
			if showerLeft > 0 {
				precip = domain.Round2(0.1 + rng.ExpFloat64()*1.2)
				showerLeft--
			}
			wind := domain.Round2(math.Max(0, 12+rng.NormFloat64()*4))

			series.Temperature[h] = &temp
			series.Precipitation[h] = &precip
			series.Windspeed[h] = &wind
		}

		out[c.Name] = domain.HourlyResponse{
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
			Timezone:  "GMT",
			Hourly:    series,
		}
	}
	return out
}

func writeFixtures(dir string, cities []domain.City, payloads map[string]domain.HourlyResponse) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, c := range cities {
		data, err := json.MarshalIndent(payloads[c.Name], "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", c.Name, err)
		}
		path := filepath.Join(dir, fixtureName(c.Name))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Printf("%s: wrote %s", c.Name, path)
	}
	return nil
}

func fixtureName(city string) string {
	return strings.ToLower(strings.ReplaceAll(city, " ", "_")) + ".json"
}

// load converts the payloads with the same code the fetcher uses and upserts
// the records.
func load(ctx context.Context, dsn string, cities []domain.City, payloads map[string]domain.HourlyResponse) (int, error) {
	st, err := store.Open(dsn, store.Options{})
	if err != nil {
		return 0, err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return 0, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var records []domain.ForecastRecord
	for _, c := range cities {
		recs, err := payloads[c.Name].ToRecords(c.Name, logger)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", c.Name, err)
		}
		records = append(records, recs...)
	}
	return st.UpsertForecasts(ctx, records)
}
