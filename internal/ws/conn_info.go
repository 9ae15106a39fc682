package ws

import (
	"time"

	"messenger-service/internal/observability"
)

// ConnInfo describes one feed connection for logs and lifecycle events.
type ConnInfo struct {
	observability.RequestMeta
	ConnID      string
	UserID      string
	TraceID     string
	ConnectedAt time.Time
}

// Age is how long the connection has been open; zero if never connected.
func (i ConnInfo) Age() time.Duration {
	if i.ConnectedAt.IsZero() {
		return 0
	}
	return time.Since(i.ConnectedAt)
}

func (i ConnInfo) headers() map[string]string {
	return observability.BuildHeaders(i.RequestMeta, i.TraceID)
}
