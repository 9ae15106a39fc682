package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/persona"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// RoomHandler manages rooms and participation.
type RoomHandler struct {
	rooms    repositories.RoomRepository
	profiles repositories.ProfileRepository
	auditor  Auditor
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository, profiles repositories.ProfileRepository, auditor Auditor) *RoomHandler {
	return &RoomHandler{rooms: rooms, profiles: profiles, auditor: auditor}
}

// MyRoomIDs returns the ids of rooms the caller participates in.
func (h *RoomHandler) MyRoomIDs(c *gin.Context) {
	ids, err := h.rooms.ListRoomIDsForUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_ids": ids})
}

// List returns the caller's rooms with profile-joined participants, most
// recently updated first.
func (h *RoomHandler) List(c *gin.Context) {
	userID := c.GetString("userID")
	limit, ok := pageLimit(c)
	if !ok {
		return
	}

	roomIDs, ok := idList(c.Query("ids"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ids"})
		return
	}
	if _, given := c.GetQuery("ids"); !given {
		var err error
		roomIDs, err = h.rooms.ListRoomIDsForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
			return
		}
	}

	rooms, err := h.rooms.ListRoomsForUser(c.Request.Context(), userID, roomIDs, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	if len(rooms) == 0 {
		c.JSON(http.StatusOK, gin.H{"rooms": []models.RoomDetails{}})
		return
	}

	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	participants, err := h.rooms.ListParticipants(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}

	seen := map[string]struct{}{}
	userIDs := []string{}
	for _, p := range participants {
		if _, ok := seen[p.UserID]; !ok {
			seen[p.UserID] = struct{}{}
			userIDs = append(userIDs, p.UserID)
		}
	}
	profiles, err := h.profiles.GetByUserIDs(c.Request.Context(), userIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profiles"})
		return
	}

	profileByUser := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		profileByUser[p.UserID] = p
	}
	participantsByRoom := map[string][]models.ParticipantView{}
	for _, p := range participants {
		view := models.ParticipantView{Participant: p}
		if profile, ok := profileByUser[p.UserID]; ok {
			profile := profile
			view.Profile = &profile
		}
		participantsByRoom[p.RoomID] = append(participantsByRoom[p.RoomID], view)
	}

	resp := make([]models.RoomDetails, 0, len(rooms))
	for _, room := range rooms {
		members := participantsByRoom[room.ID]
		if members == nil {
			members = []models.ParticipantView{}
		}
		resp = append(resp, models.RoomDetails{Room: room, Participants: members})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": resp})
}

// Create makes a room owned by the caller together with its participants.
func (h *RoomHandler) Create(c *gin.Context) {
	var req models.NewRoom
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, id := range req.ParticipantIDs {
		if _, err := uuid.Parse(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
			return
		}
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		req.Name = nil
	}
	if req.AIPersona != nil {
		p, err := persona.Lookup(*req.AIPersona)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown persona"})
			return
		}
		if req.Name == nil {
			req.Name = &p.Name
		}
	}
	if req.IsGroup && req.Name == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group rooms need a name"})
		return
	}

	userID := c.GetString("userID")
	others := otherMembers(userID, req.ParticipantIDs)
	if len(others) == 0 && req.AIPersona == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a room needs at least one other participant"})
		return
	}
	if len(others) > 0 {
		known, err := h.profiles.GetByUserIDs(c.Request.Context(), others)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify participants"})
			return
		}
		if len(known) < len(others) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown participant"})
			return
		}
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), userID, req)
	switch {
	case errors.Is(err, repositories.ErrUnknownUser):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown participant"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	observability.RecordOperation("room_create", "created")
	audit(c, h.auditor, telemetry.ActionRoomCreated, "room created", map[string]string{"room_id": room.ID})
	c.JSON(http.StatusCreated, room)
}

// otherMembers dedupes ids, drops the caller and keeps first-seen order.
func otherMembers(callerID string, ids []string) []string {
	seen := map[string]struct{}{callerID: {}}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Touch bumps the room's updated marker.
func (h *RoomHandler) Touch(c *gin.Context) {
	roomID, ok := uuidParam(c, "room_id")
	if !ok {
		return
	}
	if !requireParticipant(c, h.rooms, roomID) {
		return
	}

	if err := h.rooms.TouchRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to touch room"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Leave removes the caller from the room; the last participant leaving
// deletes the room and its messages.
func (h *RoomHandler) Leave(c *gin.Context) {
	roomID, ok := uuidParam(c, "room_id")
	if !ok {
		return
	}

	result, err := h.rooms.LeaveRoom(c.Request.Context(), roomID, c.GetString("userID"))
	switch {
	case errors.Is(err, repositories.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	case errors.Is(err, repositories.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave room"})
		return
	}

	action, outcome := telemetry.ActionRoomLeft, "left"
	if result.RoomDeleted {
		action, outcome = telemetry.ActionRoomDeleted, "deleted"
	}
	observability.RecordOperation("room_leave", outcome)
	audit(c, h.auditor, action, "room "+outcome, map[string]string{"room_id": roomID})
	c.JSON(http.StatusOK, result)
}

func requireParticipant(c *gin.Context, rooms repositories.RoomRepository, roomID string) bool {
	member, err := rooms.IsParticipant(c.Request.Context(), roomID, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return false
	}
	return true
}
