package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

const messageColumns = `id, room_id, sender_id, content, message_type, ai_persona, created_at, updated_at`

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID string, senderID string, msg models.NewMessage) (models.Message, error)
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message in a room.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID string, senderID string, msg models.NewMessage) (models.Message, error) {
	msgType := msg.MessageType
	if msgType == "" {
		msgType = models.MessageText
	}
	var created models.Message
	err := r.db.GetContext(ctx, &created, `INSERT INTO messages (room_id, sender_id, content, message_type, ai_persona) VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		roomID, senderID, msg.Content, string(msgType), msg.AIPersona)
	return created, err
}

// ListMessages returns the full history of a room ordered by creation.
func (r *MessageRepo) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY created_at ASC`, roomID)
	return msgs, err
}
