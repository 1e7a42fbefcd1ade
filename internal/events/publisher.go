package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"cityweather/internal/metrics"
)

// SearchEvent is emitted after every successful lookup
type SearchEvent struct {
	CityName    string    `json:"cityName"`
	Country     string    `json:"country"`
	Temperature int       `json:"temperature"`
	Units       string    `json:"units"`
	Description string    `json:"description"`
	SearchedAt  time.Time `json:"searchedAt"`
}

// Publisher sends search events somewhere. Failures never affect a search.
type Publisher interface {
	Publish(ctx context.Context, event SearchEvent) error
	Close() error
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, SearchEvent) error { return nil }
func (Nop) Close() error                               { return nil }

// KafkaPublisher writes events to a Kafka topic, keyed by city so all
// searches for one city land on the same partition
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher connects a synchronous producer to brokers
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Kafka: %w", err)
	}

	return NewKafkaPublisherWithProducer(producer, topic, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event SearchEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		metrics.RecordEventPublished(err)
		return fmt.Errorf("failed to encode search event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strings.ToLower(event.CityName) + "|" + event.Country),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	metrics.RecordEventPublished(err)
	if err != nil {
		return fmt.Errorf("failed to publish search event: %w", err)
	}

	p.logger.Debug("Search event published",
		"city", event.CityName,
		"partition", partition,
		"offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
