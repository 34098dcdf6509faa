package openmeteo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var berlin = domain.City{Name: "Berlin", Latitude: 52.520008, Longitude: 13.404954}

const payload = `{
  "latitude": 52.52,
  "longitude": 13.419998,
  "timezone": "Europe/Berlin",
  "utc_offset_seconds": 7200,
  "hourly": {
    "time": ["2026-10-19T00:00", "2026-10-19T01:00"],
    "temperature_2m": [9.87, 9.5],
    "precipitation": [0.0, 1.25],
    "windspeed_10m": [11.0, 12.345]
  }
}`

func TestFetchForecast_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "52.520008", q.Get("latitude"))
		assert.Equal(t, "13.404954", q.Get("longitude"))
		assert.Equal(t, "temperature_2m,precipitation,windspeed_10m", q.Get("hourly"))
		assert.Equal(t, "auto", q.Get("timezone"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, discardLogger())
	recs, err := c.FetchForecast(context.Background(), berlin)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Berlin", recs[0].City)
	assert.Equal(t, time.Date(2026, 10, 18, 22, 0, 0, 0, time.UTC), recs[0].Timestamp)
	assert.InDelta(t, 1.25, recs[1].Precipitation, 1e-9)
	assert.InDelta(t, 12.35, recs[1].Windspeed, 1e-9)
}

func TestFetchForecast_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Latitude must be in range of -90 to 90°."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, discardLogger())
	_, err := c.FetchForecast(context.Background(), berlin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "Berlin")
}

func TestFetchForecast_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hourly": [`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, discardLogger())
	_, err := c.FetchForecast(context.Background(), berlin)
	require.Error(t, err)
}

func TestFetchForecast_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, 50*time.Millisecond, discardLogger())
	_, err := c.FetchForecast(context.Background(), berlin)
	require.Error(t, err)
}

func TestFetchForecast_CircuitOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, discardLogger())
	for i := 0; i < 7; i++ {
		_, err := c.FetchForecast(context.Background(), berlin)
		require.Error(t, err)
	}
	assert.EqualValues(t, 5, calls.Load())
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("", time.Second, discardLogger())
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}
