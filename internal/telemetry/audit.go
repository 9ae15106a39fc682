// Package telemetry emits audit records for messenger writes.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const schemaVersion = 1

// Publisher is the broker side of the emitter.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Audit levels.
const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
)

// Audited actions.
const (
	ActionRoomCreated = "room_created"
	ActionRoomLeft    = "room_left"
	ActionRoomDeleted = "room_deleted"
	ActionFriendAdded = "friend_added"
	ActionMessageSent = "message_sent"
	ActionSignUp      = "sign_up"
)

// Event is one audited action as seen by a handler.
type Event struct {
	Level     string
	Action    string
	Text      string
	RequestID string
	UserID    *string
	Attrs     map[string]string
}

// AuditEnvelope is the wire form published to the audit routing key.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string            `json:"level"`
	Action string            `json:"action,omitempty"`
	Text   string            `json:"text"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// AuditEmitter stamps events with service metadata and publishes them.
// A nil emitter or publisher drops events.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      *zap.Logger
	now         func() time.Time
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger *zap.Logger) *AuditEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger.Named("audit"),
		now:         time.Now,
	}
}

// Record publishes ev; publish failures are logged, never returned.
func (e *AuditEmitter) Record(ctx context.Context, ev Event) {
	if e == nil || e.publisher == nil {
		return
	}
	if ev.Level == "" {
		ev.Level = LevelInfo
	}

	envelope := e.envelope(ev)
	e.logger.Debug("audit record",
		zap.String("action", ev.Action),
		zap.String("request_id", ev.RequestID),
		zap.Stringp("user_id", ev.UserID))
	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.logger.Warn("audit publish failed", zap.String("action", ev.Action), zap.Error(err))
	}
}

func (e *AuditEmitter) envelope(ev Event) AuditEnvelope {
	return AuditEnvelope{
		SchemaVersion: schemaVersion,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     ev.RequestID,
		UserID:        ev.UserID,
		Payload: AuditPayload{
			Level:  ev.Level,
			Action: ev.Action,
			Text:   ev.Text,
			Attrs:  ev.Attrs,
		},
	}
}
