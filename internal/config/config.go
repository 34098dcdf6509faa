package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL string
	BatchSize   int

	WeatherAPIURL  string
	WeatherTimeout time.Duration
	Cities         []domain.City

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAITimeout time.Duration

	// Summary retry schedule.
	SummaryBaseDelay   time.Duration
	SummaryMaxAttempts int
	SummaryThrottle    time.Duration

	RetentionDays int
	ForecastDays  int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaRainTopic string

	PushgatewayURL string
}

// DefaultCities is the built-in city list used when CITIES_FILE is unset.
var DefaultCities = []domain.City{
	{Name: "Munich", Latitude: 48.137154, Longitude: 11.576124},
	{Name: "Frankfurt", Latitude: 50.110924, Longitude: 8.682127},
	{Name: "Berlin", Latitude: 52.520008, Longitude: 13.404954},
	{Name: "Praha", Latitude: 50.075538, Longitude: 14.437800},
	{Name: "Brno", Latitude: 49.195061, Longitude: 16.606836},
	{Name: "Budapest", Latitude: 47.497913, Longitude: 19.040236},
	{Name: "Vienna", Latitude: 48.208174, Longitude: 16.373819},
	{Name: "Bucharest", Latitude: 44.426767, Longitude: 26.102538},
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	weatherTimeout, err := parseDuration("WEATHER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	openAITimeout, err := parseDuration("OPENAI_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	baseDelay, err := parseDuration("SUMMARY_BASE_DELAY", "5s")
	if err != nil {
		return nil, err
	}
	throttle, err := parseNonNegativeDuration("SUMMARY_THROTTLE", "1s")
	if err != nil {
		return nil, err
	}

	batchSize, err := parseInt("BATCH_SIZE", 1000, 1, 10000)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := parseInt("SUMMARY_MAX_ATTEMPTS", 4, 1, 10)
	if err != nil {
		return nil, err
	}
	retentionDays, err := parseInt("RETENTION_DAYS", 30, 1, 3650)
	if err != nil {
		return nil, err
	}
	forecastDays, err := parseInt("FORECAST_DAYS", 7, 1, 16)
	if err != nil {
		return nil, err
	}

	cities := DefaultCities
	if path := os.Getenv("CITIES_FILE"); path != "" {
		cities, err = LoadCities(path)
		if err != nil {
			return nil, err
		}
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		DatabaseURL: envOrDefault("DATABASE_URL", "sqlite://weather.db"),
		BatchSize:   batchSize,

		WeatherAPIURL:  envOrDefault("WEATHER_API_URL", "https://api.open-meteo.com/v1/forecast"),
		WeatherTimeout: weatherTimeout,
		Cities:         cities,

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   envOrDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAITimeout: openAITimeout,

		SummaryBaseDelay:   baseDelay,
		SummaryMaxAttempts: maxAttempts,
		SummaryThrottle:    throttle,

		RetentionDays: retentionDays,
		ForecastDays:  forecastDays,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   brokers,
		KafkaRainTopic: envOrDefault("KAFKA_RAIN_TOPIC", "daily-rain-forecasts"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaRainTopic == "" {
		return nil, errors.New("KAFKA_RAIN_TOPIC is required")
	}
	if len(cfg.Cities) == 0 {
		return nil, errors.New("no cities configured")
	}

	return cfg, nil
}

// RequireOpenAI reports an error when summaries cannot be generated.
func (c *Config) RequireOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	return nil
}

// Retention is RetentionDays as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type citiesFile struct {
	Cities []domain.City `yaml:"cities"`
}

// LoadCities reads a YAML city list of the form
//
//	cities:
//	  - name: Munich
//	    latitude: 48.137154
//	    longitude: 11.576124
func LoadCities(path string) ([]domain.City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CITIES_FILE: %w", err)
	}
	var f citiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse CITIES_FILE: %w", err)
	}

	seen := make(map[string]bool, len(f.Cities))
	for _, c := range f.Cities {
		switch {
		case strings.TrimSpace(c.Name) == "":
			return nil, errors.New("CITIES_FILE: city without name")
		case seen[c.Name]:
			return nil, fmt.Errorf("CITIES_FILE: duplicate city %q", c.Name)
		case c.Latitude < -90 || c.Latitude > 90:
			return nil, fmt.Errorf("CITIES_FILE: invalid latitude for %s", c.Name)
		case c.Longitude < -180 || c.Longitude > 180:
			return nil, fmt.Errorf("CITIES_FILE: invalid longitude for %s", c.Name)
		}
		seen[c.Name] = true
	}
	return f.Cities, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
