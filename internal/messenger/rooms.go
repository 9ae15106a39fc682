package messenger

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"messenger-service/internal/models"
)

// ListRooms refreshes the rooms the identity participates in, most recently
// updated first. On failure the projection is reset to empty.
func (e *Engine) ListRooms(ctx context.Context) ([]models.RoomView, error) {
	views, err := e.fetchRooms(ctx)
	if err != nil {
		e.mu.Lock()
		e.rooms = []models.RoomView{}
		e.mu.Unlock()
		e.changed()
		e.logger.Warn("list rooms failed", zap.Error(err))
		e.notify(LevelError, "Could not load rooms", "There was a problem loading your chat rooms.", err)
		return []models.RoomView{}, err
	}

	e.mu.Lock()
	last := make(map[string]*models.Message, len(e.rooms))
	for _, r := range e.rooms {
		if r.LastMessage != nil {
			last[r.ID] = r.LastMessage
		}
	}
	for i := range views {
		if m, ok := last[views[i].ID]; ok {
			views[i].LastMessage = m
		}
	}
	e.rooms = views
	out := make([]models.RoomView, len(views))
	copy(out, views)
	e.mu.Unlock()
	e.changed()
	return out, nil
}

func (e *Engine) fetchRooms(ctx context.Context) ([]models.RoomView, error) {
	ids, err := e.backend.ParticipantRoomIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "participant lookup")
	}
	if len(ids) == 0 {
		return []models.RoomView{}, nil
	}

	details, err := e.backend.Rooms(ctx, ids, PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "room fetch")
	}
	views := make([]models.RoomView, 0, len(details))
	for _, d := range details {
		views = append(views, models.RoomView{RoomDetails: d, DisplayName: RoomDisplayName(d, e.self.ID)})
	}
	return views, nil
}

// RoomDisplayName is the explicit name when set; for unnamed 1:1 rooms it is
// the counterpart's display name, falling back to their email local part.
func RoomDisplayName(room models.RoomDetails, viewerID string) string {
	if room.Name != nil && strings.TrimSpace(*room.Name) != "" {
		return *room.Name
	}
	if !room.IsGroup {
		for _, p := range room.Participants {
			if p.UserID != viewerID && p.Profile != nil {
				return p.Profile.Name()
			}
		}
		return "Direct chat"
	}

	names := make([]string, 0, len(room.Participants))
	for _, p := range room.Participants {
		if p.UserID != viewerID && p.Profile != nil {
			names = append(names, p.Profile.Name())
		}
	}
	if len(names) == 0 {
		return "Group chat"
	}
	return strings.Join(names, ", ")
}

// CreateRoom creates a room with the identity and participantIDs as members
// and returns its id, or "" on failure.
func (e *Engine) CreateRoom(ctx context.Context, participantIDs []string, isGroup bool, name *string) string {
	if name != nil && strings.TrimSpace(*name) == "" {
		name = nil
	}
	if isGroup && name == nil {
		e.notify(LevelError, "Could not create room", "Group rooms need a name.", ErrGroupName)
		return ""
	}

	ids := make([]string, 0, len(participantIDs))
	for _, id := range uniqueStrings(participantIDs) {
		if id != e.self.ID {
			ids = append(ids, id)
		}
	}

	room, err := e.backend.CreateRoom(ctx, models.NewRoom{Name: name, IsGroup: isGroup, ParticipantIDs: ids})
	if err != nil {
		e.logger.Warn("create room failed", zap.Error(err))
		e.notify(LevelError, "Could not create room", "There was a problem creating the chat room.", err)
		return ""
	}

	_, _ = e.ListRooms(ctx)
	msg := "A new chat has started."
	if isGroup {
		msg = "The group chat was created."
	}
	e.notify(LevelSuccess, "Room created", msg, nil)
	return room.ID
}

// LeaveRoom removes the identity from a room. The room disappears from the
// projection immediately and is restored if the backend call fails.
func (e *Engine) LeaveRoom(ctx context.Context, roomID string) bool {
	e.mu.Lock()
	snapRooms := append([]models.RoomView(nil), e.rooms...)
	snapMessages := append([]models.MessageView(nil), e.messages...)
	snapSelected := e.selected

	kept := make([]models.RoomView, 0, len(e.rooms))
	for _, r := range e.rooms {
		if r.ID != roomID {
			kept = append(kept, r)
		}
	}
	e.rooms = kept
	if e.selected == roomID {
		e.selected = ""
		e.messages = []models.MessageView{}
		e.generation++
	}
	e.mu.Unlock()
	e.changed()

	result, err := e.backend.LeaveRoom(ctx, roomID)
	if err != nil {
		e.mu.Lock()
		e.rooms = snapRooms
		e.messages = snapMessages
		if e.selected != snapSelected {
			e.generation++
		}
		e.selected = snapSelected
		e.mu.Unlock()
		e.changed()
		e.logger.Warn("leave room failed", zap.String("room_id", roomID), zap.Error(err))
		e.notify(LevelError, "Could not leave room", "There was a problem leaving the chat room.", err)
		return false
	}

	msg := "You left the chat room."
	if result.RoomDeleted {
		msg = "The chat room was deleted."
	}
	e.notify(LevelSuccess, "Left room", msg, nil)
	_, _ = e.ListRooms(ctx)
	return true
}
