package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"messenger-service/internal/observability"
)

const (
	feedKind       = "messages"
	feedRoutingKey = "ws_events.messages"
)

func newConnID() string {
	return uuid.NewString()
}

// publishFeedEvent counts a lifecycle event and forwards it to the broker.
// Publish failures are already counted by the observability package.
func publishFeedEvent(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(feedKind, event)
	_ = observability.PublishEvent(ctx, feedRoutingKey, wsEnvelope(info, event, reason), info.headers())
}

func wsEnvelope(info ConnInfo, event, reason string) observability.EventEnvelope {
	return observability.EventEnvelope{
		EventType:  "ws_events",
		EventName:  event,
		OccurredAt: time.Now().UTC(),
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        feedKind,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": info.Age().Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}
}
