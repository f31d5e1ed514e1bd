package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-events/internal/logger"
)

type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

// userDeletedEvent is the payload the identity provider publishes when a
// user account is removed.
type userDeletedEvent struct {
	ID string `json:"id"`
}

// StartUserDeleted consumes user deletion events until ctx is cancelled,
// invoking handler with each deleted subject. Malformed messages are
// logged and skipped.
func (c *Consumer) StartUserDeleted(ctx context.Context, handler func(ctx context.Context, subject string)) {
	c.logger.LogKafka("consume", c.reader.Config().Topic, "Consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var event userDeletedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message: %v", err))
			continue
		}
		if event.ID == "" {
			c.logger.Warn("KAFKA", "User deleted event without an id, skipping")
			continue
		}

		c.logger.LogKafka("consume", c.reader.Config().Topic, fmt.Sprintf("User deleted: %s", event.ID))
		handler(ctx, event.ID)
	}
}

// Close gracefully shuts down the Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
