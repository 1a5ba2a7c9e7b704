package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	Reader MessageReader
	Topic  string
	Logger *logger.Logger
}

// NewConsumer reads the reservation topic. Each instance should use its own
// group so every instance sees every event for its live feeds.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{Reader: reader, Topic: topic, Logger: log}
}

// Start blocks until ctx is cancelled, handing every decoded event to
// handle. Undecodable messages are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handle func(context.Context, models.ReservationEvent) error) error {
	c.Logger.LogKafka("CONSUMER_START", c.Topic, "reservation event consumer started")

	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		var evt models.ReservationEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
			continue
		}

		c.Logger.LogKafka("RECEIVED", c.Topic, fmt.Sprintf("%s for %s", evt.Type, evt.FeedKey()))
		if err := handle(ctx, evt); err != nil {
			c.Logger.Error("KAFKA", fmt.Sprintf("Handler failed for %s: %v", evt.Type, err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.Reader.Close()
}
