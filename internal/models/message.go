package models

import "time"

// MessageType tags the content of a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
	MessageAI    MessageType = "ai"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageAI:
		return true
	}
	return false
}

// Message represents a single message inside a room.
type Message struct {
	ID          string      `db:"id" json:"id"`
	RoomID      string      `db:"room_id" json:"room_id"`
	SenderID    string      `db:"sender_id" json:"sender_id"`
	Content     string      `db:"content" json:"content"`
	MessageType MessageType `db:"message_type" json:"message_type"`
	AIPersona   *string     `db:"ai_persona" json:"ai_persona,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// NewMessage is the insert payload for a message.
type NewMessage struct {
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	AIPersona   *string     `json:"ai_persona,omitempty"`
}

// MessageEvent is pushed through the realtime feed.
type MessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}

// EventInsert is the only event type the feed currently emits.
const EventInsert = "INSERT"
