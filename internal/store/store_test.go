package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

var testNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(testNow)
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "weather.db")

	s, err := Open(dsn, Options{BatchSize: 2, Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s, clk
}

func record(city string, ts time.Time, temp, precip, wind float64) domain.ForecastRecord {
	return domain.ForecastRecord{City: city, Timestamp: ts, Temperature: temp, Precipitation: precip, Windspeed: wind}
}

func TestMigrate_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_UnsupportedURL(t *testing.T) {
	_, err := Open("mysql://user:secret@db:3306/weather", Options{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "***@db:3306")
}

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		dsn  string
		name string
	}{
		{"postgres://u:p@localhost:5432/weather", "postgres"},
		{"postgresql://localhost/weather", "postgres"},
		{"sqlite://weather.db", "sqlite"},
		{"file:weather.db?cache=shared", "sqlite"},
		{":memory:", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			d, err := dialectorFor(tt.dsn)
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://***@host/db", redact("postgres://user:pw@host/db"))
	assert.Equal(t, "sqlite://weather.db", redact("sqlite://weather.db"))
	assert.Equal(t, ":memory:", redact(":memory:"))
}
