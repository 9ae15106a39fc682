package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"messenger-service/internal/observability"
)

// TokenValidator resolves an access token to an identity id.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// FeedHandler serves the realtime message insert feed.
type FeedHandler struct {
	hub    *Hub
	tokens TokenValidator
	logger *zap.Logger
}

// NewFeedHandler constructs a FeedHandler.
func NewFeedHandler(hub *Hub, tokens TokenValidator, logger *zap.Logger) *FeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedHandler{hub: hub, tokens: tokens, logger: logger.Named("ws")}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client.
func (h *FeedHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	userID, err := h.tokens.ValidateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	info := ConnInfo{
		RequestMeta: observability.MetaFromRequest(c.Request),
		ConnID:      newConnID(),
		UserID:      userID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(userID, conn, info)
	h.logger.Debug("feed connected", zap.String("user_id", userID), zap.String("conn_id", info.ConnID))

	release := observability.TrackWSConnection(feedKind)
	publishFeedEvent(ctx, info, "ws_connect", "")

	// Keep connection alive and clean on close
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(userID, conn)
			release()
			publishFeedEvent(context.Background(), info, "ws_disconnect", closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishFeedEvent(context.Background(), info, "ws_error", closeReason)
				}
				return
			}
		}
	}()
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
