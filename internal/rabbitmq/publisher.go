// Package rabbitmq publishes audit and websocket lifecycle events to a topic
// exchange. When the broker is not configured or unreachable, a noop
// publisher keeps the service running and logs what would have been sent.
package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"messenger-service/internal/observability"
	"messenger-service/internal/telemetry"
)

const (
	modeAMQP = "amqp"
	modeNoop = "noop"
)

// Publisher publishes audit and websocket lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error
	Close() error
}

// NewPublisher dials amqpURL and declares a durable topic exchange. Any
// failure yields a noop publisher carrying the reason.
func NewPublisher(amqpURL, exchange string, logger *zap.Logger) Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("rabbitmq")

	if amqpURL == "" {
		return newNoop("empty amqp url", logger)
	}
	conn, ch, err := dial(amqpURL, exchange)
	if err != nil {
		return newNoop(err.Error(), logger)
	}
	logger.Info("rabbitmq connected", zap.String("exchange", exchange))
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}
}

func dial(amqpURL, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, errors.Wrapf(err, "declare exchange %q", exchange)
	}
	return conn, ch, nil
}

type amqpPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   *zap.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishJSON(ctx, routingKey, event, nil)
}

func (p *amqpPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	body, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      toTable(headers),
		Body:         body,
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		p.logger.Warn("rabbitmq publish failed", zap.String("routing_key", routingKey), zap.Error(err))
		return errors.Wrapf(err, "publish %s", routingKey)
	}
	return nil
}

func toTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	table := make(amqp.Table, len(headers))
	for k, v := range headers {
		table[k] = v
	}
	return table
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

type noopPublisher struct {
	reason string
	logger *zap.Logger
}

func newNoop(reason string, logger *zap.Logger) noopPublisher {
	logger.Info("rabbitmq disabled, using noop", zap.String("reason", reason))
	return noopPublisher{reason: reason, logger: logger}
}

func (p noopPublisher) Publish(_ context.Context, routingKey string, event any) error {
	p.logger.Debug("rabbitmq noop publish", append([]zap.Field{zap.String("routing_key", routingKey)}, describe(event)...)...)
	return nil
}

func (p noopPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, _ map[string]string) error {
	return p.Publish(ctx, routingKey, message)
}

func (noopPublisher) Close() error { return nil }

func describe(event any) []zap.Field {
	switch e := event.(type) {
	case telemetry.AuditEnvelope:
		return []zap.Field{zap.String("event_type", e.EventType), zap.String("request_id", e.RequestID)}
	case *telemetry.AuditEnvelope:
		return describe(*e)
	case observability.EventEnvelope:
		return []zap.Field{zap.String("event_type", e.EventType), zap.String("event_name", e.EventName)}
	default:
		return nil
	}
}

// PublisherMode reports "amqp" or "noop" for startup logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return modeAMQP
	case noopPublisher:
		return modeNoop
	default:
		return "unknown"
	}
}

// PublisherNoopReason explains why p fell back to noop; empty otherwise.
func PublisherNoopReason(p Publisher) string {
	if publisher, ok := p.(noopPublisher); ok {
		return publisher.reason
	}
	return ""
}
