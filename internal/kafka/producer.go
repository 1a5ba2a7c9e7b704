package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer streams reservation events to Kafka, keyed by feed so every
// event of one session lands on the same partition. In mock mode the event
// is only logged.
type Producer struct {
	Writer   MessageWriter
	Topic    string
	MockMode bool
	Logger   *logger.Logger
}

func NewProducer(brokers []string, topic string, mockMode bool, log *logger.Logger) *Producer {
	p := &Producer{Topic: topic, MockMode: mockMode, Logger: log}
	if !mockMode {
		p.Writer = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		}
	}
	return p
}

func (p *Producer) Publish(ctx context.Context, evt models.ReservationEvent) error {
	msgBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	if p.MockMode || p.Writer == nil {
		p.Logger.LogKafka("MOCK_PUBLISH", p.Topic, string(msgBytes))
		return nil
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.FeedKey()),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", evt.Type, err)
	}
	p.Logger.LogKafka("PUBLISH", p.Topic, fmt.Sprintf("%s for %s", evt.Type, evt.FeedKey()))
	return nil
}

func (p *Producer) Close() error {
	if p.Writer == nil {
		return nil
	}
	return p.Writer.Close()
}
