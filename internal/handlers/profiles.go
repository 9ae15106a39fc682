package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// ProfileHandler serves profile reads and the owner's updates.
type ProfileHandler struct {
	profiles repositories.ProfileRepository
}

// NewProfileHandler builds a ProfileHandler.
func NewProfileHandler(profiles repositories.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Me returns the caller's profile.
func (h *ProfileHandler) Me(c *gin.Context) {
	profile, err := h.profiles.GetByUserID(c.Request.Context(), c.GetString("userID"))
	if errors.Is(err, repositories.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMe applies a partial update to the caller's profile.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	profile, err := h.profiles.UpdateProfile(c.Request.Context(), c.GetString("userID"), req)
	if errors.Is(err, repositories.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// List returns the profiles for ?ids=a,b.
func (h *ProfileHandler) List(c *gin.Context) {
	ids, ok := idList(c.Query("ids"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ids"})
		return
	}
	if len(ids) == 0 {
		c.JSON(http.StatusOK, gin.H{"profiles": []models.Profile{}})
		return
	}

	profiles, err := h.profiles.GetByUserIDs(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profiles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// Lookup finds a profile by email, case-insensitively.
func (h *ProfileHandler) Lookup(c *gin.Context) {
	email := models.NormalizeEmail(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	profile, err := h.profiles.FindByEmail(c.Request.Context(), email)
	if errors.Is(err, repositories.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}
