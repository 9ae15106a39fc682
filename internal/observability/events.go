package observability

import (
	"context"
	"time"
)

// Publisher is the sink for websocket lifecycle events.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error
}

var defaultPublisher Publisher

// SetPublisher installs the sink used by PublishEvent; nil disables publishing.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// EventEnvelope wraps lifecycle events published to the broker.
type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// PublishEvent sends message to the installed sink and counts failures.
func PublishEvent(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}
	if err := defaultPublisher.PublishJSON(ctx, routingKey, message, headers); err != nil {
		IncAMQPPublishError()
		return err
	}
	return nil
}

// BuildHeaders returns the AMQP headers correlating an event with its request.
func BuildHeaders(meta RequestMeta, traceID string) map[string]string {
	headers := map[string]string{}
	if meta.RequestID != "" {
		headers["x-request-id"] = meta.RequestID
	}
	if meta.DeviceID != "" {
		headers["x-device-id"] = meta.DeviceID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
