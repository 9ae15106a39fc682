package messenger

import (
	"context"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/persona"
)

// CreatePersonaRoom opens a room bound to an AI persona with the identity as
// its only member, posts the persona's greeting and selects the room. It
// returns the room id, or "" on failure.
func (e *Engine) CreatePersonaRoom(ctx context.Context, personaID string) string {
	p, err := persona.Lookup(personaID)
	if err != nil {
		e.notify(LevelError, "Could not start AI chat", "That AI persona does not exist.", err)
		return ""
	}

	room, err := e.backend.CreateRoom(ctx, models.NewRoom{Name: &p.Name, AIPersona: &p.ID})
	if err != nil {
		e.logger.Warn("create persona room failed", zap.String("persona", p.ID), zap.Error(err))
		e.notify(LevelError, "Could not start AI chat", "There was a problem creating the chat room.", err)
		return ""
	}

	if _, err := e.backend.InsertMessage(ctx, room.ID, models.NewMessage{
		Content:     persona.Greeting(p),
		MessageType: models.MessageAI,
		AIPersona:   &p.ID,
	}); err != nil {
		e.logger.Warn("persona greeting failed", zap.String("room_id", room.ID), zap.Error(err))
	}

	_, _ = e.ListRooms(ctx)
	_ = e.SelectRoom(ctx, room.ID)
	e.notify(LevelSuccess, "AI chat started", "Started a conversation with "+p.Name+".", nil)
	return room.ID
}

// AskPersona sends content to roomID and posts the persona's reply as an AI
// message. The persona is personaID when set, else the room's own persona,
// else the default one. It reports whether the reply was posted.
func (e *Engine) AskPersona(ctx context.Context, roomID, personaID, content string) bool {
	p, err := e.resolvePersona(roomID, personaID)
	if err != nil {
		e.notify(LevelError, "Could not ask AI", "That AI persona does not exist.", err)
		return false
	}

	history := e.historyFor(roomID)
	if _, ok := e.send(ctx, content, roomID, models.MessageText, nil); !ok {
		return false
	}

	e.setTyping(roomID, p.ID)
	reply, err := e.responder.Reply(ctx, p, content, history)
	e.setTyping(roomID, "")
	if err != nil {
		e.logger.Warn("persona reply failed", zap.String("room_id", roomID), zap.String("persona", p.ID), zap.Error(err))
		e.notify(LevelError, "AI reply failed", "There was a problem generating a reply.", err)
		return false
	}

	_, ok := e.send(ctx, reply, roomID, models.MessageAI, &p.ID)
	return ok
}

// Typing reports the persona currently composing a reply in roomID, or "".
func (e *Engine) Typing(roomID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typing[roomID]
}

func (e *Engine) resolvePersona(roomID, personaID string) (persona.Persona, error) {
	if personaID != "" {
		return persona.Lookup(personaID)
	}
	e.mu.Lock()
	var bound *string
	for _, r := range e.rooms {
		if r.ID == roomID {
			bound = r.AIPersona
			break
		}
	}
	e.mu.Unlock()
	if bound != nil {
		if p, err := persona.Lookup(*bound); err == nil {
			return p, nil
		}
	}
	return persona.Default(), nil
}

// historyFor returns the confirmed messages of roomID when it is selected.
func (e *Engine) historyFor(roomID string) []models.MessageView {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected != roomID {
		return nil
	}
	out := make([]models.MessageView, 0, len(e.messages))
	for _, m := range e.messages {
		if !m.Pending {
			out = append(out, m)
		}
	}
	return out
}

func (e *Engine) setTyping(roomID, personaID string) {
	e.mu.Lock()
	if personaID == "" {
		delete(e.typing, roomID)
	} else {
		e.typing[roomID] = personaID
	}
	e.mu.Unlock()
	e.changed()
}
