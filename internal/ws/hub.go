package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messenger-service/internal/models"
)

const writeWait = 10 * time.Second

type client struct {
	conn    *websocket.Conn
	info    ConnInfo
	writeMu sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the realtime message feed connections, keyed by identity.
type Hub struct {
	clients map[string]map[*websocket.Conn]*client
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]*client),
		logger:  logger.Named("ws"),
	}
}

// AddClient registers a feed connection for an identity.
func (h *Hub) AddClient(userID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*websocket.Conn]*client)
	}
	h.clients[userID][conn] = &client{conn: conn, info: info}
}

// RemoveClient removes a feed connection.
func (h *Hub) RemoveClient(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Connected reports how many connections an identity currently holds.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// BroadcastMessage pushes an insert event to every connection of the
// recipients.
func (h *Hub) BroadcastMessage(recipientIDs []string, msg models.Message) {
	event := models.MessageEvent{Type: models.EventInsert, Message: &msg}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal message event", zap.Error(err))
		return
	}

	for _, c := range h.snapshot(recipientIDs) {
		if err := c.write(payload); err != nil {
			h.logger.Warn("websocket write error", zap.String("user_id", c.info.UserID), zap.Error(err))
			if c.conn != nil {
				c.conn.Close()
			}
			h.RemoveClient(c.info.UserID, c.conn)
			h.publishWSError(c.info, err)
		}
	}
}

func (h *Hub) snapshot(userIDs []string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*client
	for _, id := range userIDs {
		for _, c := range h.clients[id] {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	publishFeedEvent(context.Background(), info, "ws_error", err.Error())
}
