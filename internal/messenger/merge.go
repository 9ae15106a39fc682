package messenger

import "messenger-service/internal/models"

// mergeInsert applies a realtime insert to the selected room's messages.
// Self-originated events, events for other rooms and already present ids
// leave the list unchanged; the bool reports whether it changed.
func mergeInsert(messages []models.MessageView, selfID, selectedRoomID string, incoming models.MessageView) ([]models.MessageView, bool) {
	if incoming.SenderID == selfID {
		return messages, false
	}
	if selectedRoomID == "" || incoming.RoomID != selectedRoomID {
		return messages, false
	}
	if indexOfMessage(messages, incoming.ID) >= 0 {
		return messages, false
	}
	return append(messages, incoming), true
}

// applyRoomActivity records msg as the latest message of its room and moves
// the room to the front. Unknown rooms leave the list unchanged.
func applyRoomActivity(rooms []models.RoomView, msg models.Message) ([]models.RoomView, bool) {
	idx := -1
	for i := range rooms {
		if rooms[i].ID == msg.RoomID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return rooms, false
	}

	room := rooms[idx]
	last := msg
	room.LastMessage = &last
	if msg.CreatedAt.After(room.UpdatedAt) {
		room.UpdatedAt = msg.CreatedAt
	}

	out := make([]models.RoomView, 0, len(rooms))
	out = append(out, room)
	out = append(out, rooms[:idx]...)
	out = append(out, rooms[idx+1:]...)
	return out, true
}

// mergeFetched replaces a room's history with a fetched one while keeping
// optimistic entries that are still pending and not yet part of it.
func mergeFetched(fetched []models.MessageView, current []models.MessageView, stillPending func(models.MessageView) bool) []models.MessageView {
	out := make([]models.MessageView, 0, len(fetched))
	out = append(out, fetched...)
	for _, m := range current {
		if m.ClientID == "" || !stillPending(m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func indexOfMessage(messages []models.MessageView, id string) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfClientID(messages []models.MessageView, clientID string) int {
	for i := range messages {
		if messages[i].ClientID == clientID {
			return i
		}
	}
	return -1
}
