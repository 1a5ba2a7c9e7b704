package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

// Channel is the slice of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends reservation events to a durable topic exchange, routed by
// event type (reservation.created, reservation.checked_in, ...).
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  Channel
	Exchange string
	Logger   *logger.Logger
}

func Dial(url, exchange string, log *logger.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	p, err := NewPublisher(ch, exchange, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewPublisher(ch Channel, exchange string, log *logger.Logger) (*Publisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	return &Publisher{channel: ch, Exchange: exchange, Logger: log}, nil
}

func (p *Publisher) Publish(ctx context.Context, evt models.ReservationEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    evt.FeedKey() + "@" + evt.OccurredAt.Format(time.RFC3339Nano),
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.Exchange, evt.Type, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", evt.Type, err)
	}
	p.Logger.Debug("RABBITMQ", fmt.Sprintf("Published %s for %s", evt.Type, evt.FeedKey()))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
