// Package openmeteo fetches hourly forecasts from the Open-Meteo API.
package openmeteo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

// DefaultBaseURL is the public Open-Meteo forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

const hourlyVariables = "temperature_2m,precipitation,windspeed_10m"

// maxBodyBytes bounds the payload read per city.
const maxBodyBytes = 4 << 20

// Client requests hourly forecasts per city. Consecutive failures open a
// circuit breaker so a dead upstream fails fast instead of waiting out every
// per-city timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client. timeout bounds each city request.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
		logger:     logger,
	}
}

// FetchForecast returns one record per valid hour of the city's forecast.
func (c *Client) FetchForecast(ctx context.Context, city domain.City) ([]domain.ForecastRecord, error) {
	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, city)
	})
	if err != nil {
		return nil, fmt.Errorf("open-meteo %s: %w", city.Name, err)
	}

	resp, err := domain.ParseHourlyResponse(body.([]byte))
	if err != nil {
		return nil, err
	}
	return resp.ToRecords(city.Name, c.logger)
}

func (c *Client) get(ctx context.Context, city domain.City) ([]byte, error) {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(city.Latitude, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(city.Longitude, 'f', -1, 64)},
		"hourly":    {hourlyVariables},
		"timezone":  {"auto"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
