package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// Broadcaster fans a stored message out to connected recipients.
type Broadcaster interface {
	BroadcastMessage(recipientIDs []string, msg models.Message)
}

// MessageHandler serves room messages.
type MessageHandler struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	hub      Broadcaster
	auditor  Auditor
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository, hub Broadcaster, auditor Auditor) *MessageHandler {
	return &MessageHandler{rooms: rooms, messages: messages, hub: hub, auditor: auditor}
}

// List returns the full history of a room, oldest first.
func (h *MessageHandler) List(c *gin.Context) {
	roomID, ok := uuidParam(c, "room_id")
	if !ok {
		return
	}
	if !requireParticipant(c, h.rooms, roomID) {
		return
	}

	msgs, err := h.messages.ListMessages(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Create stores a message from the caller and pushes it to the room.
func (h *MessageHandler) Create(c *gin.Context) {
	roomID, ok := uuidParam(c, "room_id")
	if !ok {
		return
	}

	var req models.NewMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	if req.MessageType == "" {
		req.MessageType = models.MessageText
	}
	if !req.MessageType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message type"})
		return
	}

	if !requireParticipant(c, h.rooms, roomID) {
		return
	}

	userID := c.GetString("userID")
	msg, err := h.messages.CreateMessage(c.Request.Context(), roomID, userID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		return
	}
	observability.IncMessageInserted(string(msg.MessageType))

	if h.hub != nil {
		recipients, err := h.rooms.ParticipantIDs(c.Request.Context(), roomID)
		if err == nil {
			h.hub.BroadcastMessage(recipients, msg)
		} else {
			_ = c.Error(err)
		}
	}

	audit(c, h.auditor, telemetry.ActionMessageSent, "message sent", map[string]string{
		"room_id":      roomID,
		"message_id":   msg.ID,
		"message_type": string(msg.MessageType),
	})
	c.JSON(http.StatusCreated, msg)
}
