// Package kafka publishes derived rain forecasts to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-forecast-etl/internal/config"
	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

const eventType = "daily_rain_forecast"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces DailyRainForecast events.
// It implements pipeline.RainPublisher.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured rain topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaRainTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishRainForecasts serializes and publishes all forecasts in a single
// WriteMessages call. Messages are keyed by city and date so repeated runs
// land on the same partition.
func (p *Publisher) PublishRainForecasts(ctx context.Context, forecasts []domain.DailyRainForecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(forecasts))
	for i := range forecasts {
		msg, err := serializeToMessage(forecasts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish rain forecasts: %w", err)
	}
	p.logger.Debug("rain forecasts published", "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// MessageKey identifies a forecast on the topic.
func MessageKey(f domain.DailyRainForecast) string {
	return f.City + "|" + f.ForecastDate.Format(time.DateOnly)
}

// serializeToMessage marshals a DailyRainForecast into a Kafka message.
func serializeToMessage(f domain.DailyRainForecast) (kafkago.Message, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize rain forecast: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(f)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "created_at", Value: []byte(f.CreatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
