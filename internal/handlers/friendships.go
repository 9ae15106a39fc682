package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// FriendshipHandler manages friendship edges of the caller.
type FriendshipHandler struct {
	friendships repositories.FriendshipRepository
	auditor     Auditor
}

// NewFriendshipHandler builds a FriendshipHandler.
func NewFriendshipHandler(friendships repositories.FriendshipRepository, auditor Auditor) *FriendshipHandler {
	return &FriendshipHandler{friendships: friendships, auditor: auditor}
}

// List returns accepted friendships where the caller is either side.
func (h *FriendshipHandler) List(c *gin.Context) {
	limit, ok := pageLimit(c)
	if !ok {
		return
	}

	edges, err := h.friendships.ListAccepted(c.Request.Context(), c.GetString("userID"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friendships"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"friendships": edges})
}

// GetAccepted returns the accepted edge between the caller and :user_id.
func (h *FriendshipHandler) GetAccepted(c *gin.Context) {
	otherID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}

	edge, err := h.friendships.FindAccepted(c.Request.Context(), c.GetString("userID"), otherID)
	if errors.Is(err, repositories.ErrFriendshipNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "friendship not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friendship"})
		return
	}
	c.JSON(http.StatusOK, edge)
}

// Create inserts a friendship requested by the caller.
func (h *FriendshipHandler) Create(c *gin.Context) {
	var req struct {
		AddresseeID string                  `json:"addressee_id" binding:"required"`
		Status      models.FriendshipStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := uuid.Parse(req.AddresseeID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid addressee id"})
		return
	}
	if req.Status == "" {
		req.Status = models.FriendshipAccepted
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	edge, err := h.friendships.CreateFriendship(c.Request.Context(), c.GetString("userID"), req.AddresseeID, req.Status)
	switch {
	case errors.Is(err, repositories.ErrSelfFriendship):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot add yourself"})
		return
	case errors.Is(err, repositories.ErrFriendshipExists):
		observability.RecordOperation("friendship_create", "conflict")
		c.JSON(http.StatusConflict, gin.H{"error": "friendship already exists"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create friendship"})
		return
	}

	observability.RecordOperation("friendship_create", "created")
	audit(c, h.auditor, telemetry.ActionFriendAdded, "friendship created", map[string]string{
		"friendship_id": edge.ID,
		"addressee_id":  edge.AddresseeID,
	})
	c.JSON(http.StatusCreated, edge)
}

func pageLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultPageSize, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, true
}
