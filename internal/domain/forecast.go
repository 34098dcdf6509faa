package domain

import (
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// City is a forecast location.
type City struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// ForecastRecord is one hourly forecast value set for a city. Timestamp is
// the UTC instant; UTCOffset is the city's offset east of UTC in seconds at
// that hour and decides the record's local calendar date.
type ForecastRecord struct {
	City          string    `json:"city" validate:"required"`
	Timestamp     time.Time `json:"timestamp"`
	UTCOffset     int       `json:"utc_offset_seconds" validate:"gte=-64800,lte=64800"`
	Temperature   float64   `json:"temperature" validate:"gte=-100,lte=100"`
	Precipitation float64   `json:"precipitation" validate:"gte=0"`
	Windspeed     float64   `json:"windspeed" validate:"gte=0"`
	CreatedAt     time.Time `json:"created_at"`
}

// Key identifies a record in the store.
type Key struct {
	City      string
	Timestamp time.Time
}

// Key returns the record's natural key.
func (r ForecastRecord) Key() Key {
	return Key{City: r.City, Timestamp: r.Timestamp.UTC()}
}

// LocalTime is the timestamp in the city's zone.
func (r ForecastRecord) LocalTime() time.Time {
	return r.Timestamp.In(Zone(r.UTCOffset))
}

// LocalDate is the city's calendar date of the timestamp.
func (r ForecastRecord) LocalDate() time.Time {
	return LocalDate(r.Timestamp, r.UTCOffset)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewForecastRecord rounds the measurements to two decimals and validates
// them. The timestamp is normalized to UTC and its zone offset is kept as
// UTCOffset.
func NewForecastRecord(city string, ts time.Time, temperature, precipitation, windspeed float64) (ForecastRecord, error) {
	_, offset := ts.Zone()
	rec := ForecastRecord{
		City:          city,
		Timestamp:     ts.UTC(),
		UTCOffset:     offset,
		Temperature:   Round2(temperature),
		Precipitation: Round2(precipitation),
		Windspeed:     Round2(windspeed),
		CreatedAt:     clock.Now().UTC(),
	}
	if err := rec.Validate(); err != nil {
		return ForecastRecord{}, err
	}
	return rec, nil
}

// Validate checks the record against its domain bounds.
func (r ForecastRecord) Validate() error {
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Value: r.Timestamp, Reason: "required"}
	}
	for _, v := range []float64{r.Temperature, r.Precipitation, r.Windspeed} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "measurement", Value: v, Reason: "not a finite number"}
		}
	}

	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fieldName(fe.Field()), Value: fe.Value(), Reason: reason(fe)}
	}
	return err
}

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func fieldName(structField string) string {
	switch structField {
	case "City":
		return "city"
	case "Temperature":
		return "temperature"
	case "Precipitation":
		return "precipitation"
	case "Windspeed":
		return "windspeed"
	case "UTCOffset":
		return "utc_offset_seconds"
	default:
		return structField
	}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return fe.Tag()
	}
}
