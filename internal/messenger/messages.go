package messenger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"messenger-service/internal/models"
)

// SelectRoom switches the materialized room. An empty id clears the message
// projection; otherwise the room's history is fetched. Unresolved sends to
// roomID stay visible while the history loads.
func (e *Engine) SelectRoom(ctx context.Context, roomID string) error {
	e.mu.Lock()
	e.selected = roomID
	kept := []models.MessageView{}
	for _, m := range e.messages {
		if m.ClientID != "" && e.pending.isPending(m.ClientID, roomID) {
			kept = append(kept, m)
		}
	}
	e.messages = kept
	e.generation++
	e.mu.Unlock()
	e.changed()

	if roomID == "" {
		return nil
	}
	_, err := e.ListMessages(ctx, roomID)
	return err
}

// ListMessages fetches a room's full history with sender profiles. The
// result replaces the projection only if roomID is still selected and no
// newer fetch or selection happened meanwhile.
func (e *Engine) ListMessages(ctx context.Context, roomID string) ([]models.MessageView, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	views, err := e.fetchMessages(ctx, roomID)
	if err != nil {
		e.logger.Warn("list messages failed", zap.String("room_id", roomID), zap.Error(err))
		e.notify(LevelError, "Could not load messages", err.Error(), err)
		return nil, err
	}

	e.mu.Lock()
	if gen != e.generation || roomID != e.selected {
		e.mu.Unlock()
		e.logger.Debug("discarding stale messages", zap.String("room_id", roomID))
		return views, nil
	}
	e.messages = mergeFetched(views, e.messages, func(m models.MessageView) bool {
		return e.pending.isPending(m.ClientID, roomID)
	})
	e.mu.Unlock()
	e.changed()
	return views, nil
}

func (e *Engine) fetchMessages(ctx context.Context, roomID string) ([]models.MessageView, error) {
	msgs, err := e.backend.ListMessages(ctx, roomID)
	if err != nil {
		return nil, errors.Wrap(err, "message fetch")
	}
	senders := make([]string, 0, len(msgs))
	for _, m := range msgs {
		senders = append(senders, m.SenderID)
	}
	byID, err := e.profileMap(ctx, uniqueStrings(senders))
	if err != nil {
		return nil, errors.Wrap(err, "sender profiles")
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := models.MessageView{Message: m}
		if p, ok := byID[m.SenderID]; ok {
			p := p
			view.Sender = &p
		}
		views = append(views, view)
	}
	return views, nil
}

// SendMessage posts content to roomID. The message is shown immediately as a
// pending entry, replaced by the stored row on success and removed on
// failure. Blank content is ignored.
func (e *Engine) SendMessage(ctx context.Context, content, roomID string, msgType models.MessageType, aiPersona *string) bool {
	_, ok := e.send(ctx, content, roomID, msgType, aiPersona)
	return ok
}

func (e *Engine) send(ctx context.Context, content, roomID string, msgType models.MessageType, aiPersona *string) (string, bool) {
	content = strings.TrimSpace(content)
	if content == "" || roomID == "" {
		return "", false
	}
	if msgType == "" {
		msgType = models.MessageText
	}

	clientID := uuid.NewString()
	now := e.now()
	temp := models.MessageView{
		Message: models.Message{
			ID:          "temp-" + clientID,
			RoomID:      roomID,
			SenderID:    e.self.ID,
			Content:     content,
			MessageType: msgType,
			AIPersona:   aiPersona,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		Sender:   e.self.Profile,
		ClientID: clientID,
		Pending:  true,
	}

	e.mu.Lock()
	e.pending.begin(clientID, roomID)
	if e.selected == roomID {
		e.messages = append(e.messages, temp)
	}
	e.mu.Unlock()
	e.changed()

	stored, err := e.backend.InsertMessage(ctx, roomID, models.NewMessage{
		Content:     content,
		MessageType: msgType,
		AIPersona:   aiPersona,
	})
	if err != nil {
		e.mu.Lock()
		_ = e.pending.rollBack(clientID)
		if i := indexOfClientID(e.messages, clientID); i >= 0 {
			e.messages = append(e.messages[:i:i], e.messages[i+1:]...)
		}
		e.mu.Unlock()
		e.changed()
		e.logger.Warn("send message failed", zap.String("room_id", roomID), zap.Error(err))
		e.notify(LevelError, "Could not send message", err.Error(), err)
		return clientID, false
	}

	e.mu.Lock()
	_ = e.pending.confirm(clientID, stored.ID)
	switch i := indexOfClientID(e.messages, clientID); {
	case i >= 0 && indexOfMessage(e.messages, stored.ID) >= 0:
		e.messages = append(e.messages[:i:i], e.messages[i+1:]...)
	case i >= 0:
		e.messages[i] = models.MessageView{Message: stored, Sender: e.messages[i].Sender}
	case e.selected == roomID && indexOfMessage(e.messages, stored.ID) < 0:
		// the optimistic entry was dropped by a room switch in the meantime
		e.messages = append(e.messages, models.MessageView{Message: stored, Sender: e.self.Profile})
	}
	e.rooms, _ = applyRoomActivity(e.rooms, stored)
	e.mu.Unlock()
	e.changed()

	if err := e.backend.TouchRoom(ctx, roomID); err != nil {
		e.logger.Warn("touch room failed", zap.String("room_id", roomID), zap.Error(err))
	}
	return clientID, true
}
