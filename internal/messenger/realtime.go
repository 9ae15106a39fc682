package messenger

import (
	"context"

	"go.uber.org/zap"

	"messenger-service/internal/models"
)

func (e *Engine) realtimeLoop(ctx context.Context, sub Subscription) {
	defer e.loopWG.Done()
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				e.logger.Info("realtime feed closed")
				return
			}
			e.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent reconciles one realtime event with the projections. Applying
// the same event more than once has the effect of applying it once.
func (e *Engine) HandleEvent(ctx context.Context, ev models.MessageEvent) {
	if ev.Type != models.EventInsert || ev.Message == nil {
		return
	}
	msg := *ev.Message
	if msg.SenderID == e.self.ID {
		return
	}

	e.mu.Lock()
	selected := e.selected
	known := false
	for _, r := range e.rooms {
		if r.ID == msg.RoomID {
			known = true
			break
		}
	}
	e.mu.Unlock()

	view := models.MessageView{Message: msg}
	if selected != "" && msg.RoomID == selected {
		byID, err := e.profileMap(ctx, []string{msg.SenderID})
		if err != nil {
			e.logger.Warn("sender profile lookup failed", zap.String("sender_id", msg.SenderID), zap.Error(err))
		} else if p, ok := byID[msg.SenderID]; ok {
			view.Sender = &p
		}
	}

	e.mu.Lock()
	var changedMessages, changedRooms bool
	e.messages, changedMessages = mergeInsert(e.messages, e.self.ID, e.selected, view)
	e.rooms, changedRooms = applyRoomActivity(e.rooms, msg)
	e.mu.Unlock()
	if changedMessages || changedRooms {
		e.changed()
	}

	// a room created by someone else shows up with its first message
	if !known {
		if _, err := e.ListRooms(ctx); err == nil {
			e.mu.Lock()
			e.rooms, _ = applyRoomActivity(e.rooms, msg)
			e.mu.Unlock()
			e.changed()
		}
	}
}
