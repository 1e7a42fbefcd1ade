package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"cityweather/internal/models"
)

// Recorder stores a consumed search
type Recorder interface {
	Add(cityName, country string) models.HistoryEntry
}

// HistoryHandler is a consumer group handler that records every search event
// it reads into a history
type HistoryHandler struct {
	recorder Recorder
	logger   *slog.Logger
}

var _ sarama.ConsumerGroupHandler = (*HistoryHandler)(nil)

func NewHistoryHandler(recorder Recorder, logger *slog.Logger) *HistoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryHandler{recorder: recorder, logger: logger}
}

func (h *HistoryHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *HistoryHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks undecodable messages too; redelivering them cannot help
func (h *HistoryHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.Handle(msg); err != nil {
			h.logger.Error("Skipping search event", "offset", msg.Offset, "error", err)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

// Handle decodes one message and records the search it describes
func (h *HistoryHandler) Handle(msg *sarama.ConsumerMessage) error {
	var event SearchEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to decode search event: %w", err)
	}
	if event.CityName == "" {
		return fmt.Errorf("search event at offset %d has no city", msg.Offset)
	}

	entry := h.recorder.Add(event.CityName, event.Country)
	h.logger.Info("Recorded search",
		"city", entry.CityName,
		"country", entry.Country,
		"searched_at", event.SearchedAt)
	return nil
}

// NewConsumerGroup joins group on brokers, starting from the oldest offset
func NewConsumerGroup(brokers []string, group string) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumer, err := sarama.NewConsumerGroup(brokers, group, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}
	return consumer, nil
}

// Consume runs handler against topic until ctx is cancelled
func Consume(ctx context.Context, consumer sarama.ConsumerGroup, topic string, handler sarama.ConsumerGroupHandler, logger *slog.Logger) {
	for {
		if err := consumer.Consume(ctx, []string{topic}, handler); err != nil {
			logger.Error("Error reading from Kafka", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// LogErrors logs every error the consumer group reports until errs is closed,
// which happens when the group is closed
func LogErrors(errs <-chan error, logger *slog.Logger) {
	for err := range errs {
		logger.Error("Kafka consumer error", "error", err)
	}
}
