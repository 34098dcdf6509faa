// Package domain models hourly weather forecasts and the aggregates derived
// from them.
//
// # Data Source
//
// Forecasts come from the Open-Meteo forecast API
// (https://open-meteo.com/en/docs). One request per city asks for the hourly
// variables temperature_2m, precipitation and windspeed_10m with
// timezone=auto. The response carries the series as parallel arrays:
//
//	"hourly": {
//	  "time":           ["2026-10-19T00:00", "2026-10-19T01:00", ...],
//	  "temperature_2m": [11.4, 11.1, ...],   // °C
//	  "precipitation":  [0.0, 0.3, ...],     // mm over the preceding hour
//	  "windspeed_10m":  [9.7, 10.2, ...]     // km/h
//	}
//
// Times are local wall-clock times in the zone Open-Meteo resolved for the
// coordinates; utc_offset_seconds gives the offset. [ParseHourlyResponse]
// decodes the payload and [HourlyResponse.ToRecords] reads the times in that
// offset. Records hold UTC instants together with the offset, and calendar
// dates used for grouping ("date of timestamp", "today") are the city's local
// dates.
//
// Missing hours are reported as JSON null and are skipped.
//
// # Record Invariants
//
// A [ForecastRecord] is unique per (city, timestamp). Measurements are rounded
// to two decimal places before validation:
//
//	temperature    [-100, 100] °C
//	precipitation  >= 0 mm
//	windspeed      >= 0 km/h
//
// [NewForecastRecord] rejects anything else with a [ValidationError]; such
// records are never persisted.
//
// # Derived Data
//
// [AggregateRainWindows] groups rainy hours per (city, date) into a
// [DailyRainForecast]: first and last rainy hour, total and peak
// precipitation, mean temperature and wind. [AggregateDaily] produces the
// [DailyStats] rows that feed the natural-language [WeatherSummary].
package domain
