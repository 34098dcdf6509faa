package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// openMeteoTimeLayout is the ISO-8601 minute layout Open-Meteo uses for hourly times.
const openMeteoTimeLayout = "2006-01-02T15:04"

// HourlyResponse is the subset of the Open-Meteo forecast payload this service reads.
type HourlyResponse struct {
	Latitude         float64      `json:"latitude"`
	Longitude        float64      `json:"longitude"`
	Timezone         string       `json:"timezone"`
	UTCOffsetSeconds int          `json:"utc_offset_seconds"`
	Hourly           HourlySeries `json:"hourly"`
}

// HourlySeries holds the parallel hourly arrays. Null entries decode as nil.
type HourlySeries struct {
	Time          []string   `json:"time"`
	Temperature   []*float64 `json:"temperature_2m"`
	Precipitation []*float64 `json:"precipitation"`
	Windspeed     []*float64 `json:"windspeed_10m"`
}

// ParseHourlyResponse decodes a raw Open-Meteo payload.
func ParseHourlyResponse(data []byte) (HourlyResponse, error) {
	var resp HourlyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return HourlyResponse{}, fmt.Errorf("unmarshal hourly response: %w", err)
	}
	if resp.Hourly.Time == nil {
		return HourlyResponse{}, fmt.Errorf("hourly response: missing hourly.time")
	}
	return resp, nil
}

// ToRecords flattens the response into one ForecastRecord per hour for city.
// Hours with a missing value or a value out of bounds are skipped and logged.
func (r HourlyResponse) ToRecords(city string, logger *slog.Logger) ([]ForecastRecord, error) {
	h := r.Hourly
	n := len(h.Time)
	if len(h.Temperature) != n || len(h.Precipitation) != n || len(h.Windspeed) != n {
		return nil, fmt.Errorf("hourly series length mismatch: time=%d temperature=%d precipitation=%d windspeed=%d",
			n, len(h.Temperature), len(h.Precipitation), len(h.Windspeed))
	}

	loc := time.FixedZone(r.Timezone, r.UTCOffsetSeconds)
	records := make([]ForecastRecord, 0, n)
	for i, raw := range h.Time {
		ts, err := time.ParseInLocation(openMeteoTimeLayout, raw, loc)
		if err != nil {
			return nil, fmt.Errorf("parse hourly time %q: %w", raw, err)
		}
		if h.Temperature[i] == nil || h.Precipitation[i] == nil || h.Windspeed[i] == nil {
			logger.Debug("skipping hour with missing values", "city", city, "time", raw)
			continue
		}
		rec, err := NewForecastRecord(city, ts, *h.Temperature[i], *h.Precipitation[i], *h.Windspeed[i])
		if err != nil {
			logger.Warn("skipping invalid hour", "city", city, "time", raw, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
