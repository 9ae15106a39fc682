package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/auth"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// Authenticator is the identity provider used by AuthHandler.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string, displayName *string) (auth.Session, error)
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
}

// AuthHandler exposes sign-up and sign-in.
type AuthHandler struct {
	auth    Authenticator
	auditor Auditor
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(authenticator Authenticator, auditor Auditor) *AuthHandler {
	return &AuthHandler{auth: authenticator, auditor: auditor}
}

type credentialsRequest struct {
	Email       string  `json:"email" binding:"required"`
	Password    string  `json:"password" binding:"required"`
	DisplayName *string `json:"display_name"`
}

// SignUp creates an identity and returns a session.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	switch {
	case errors.Is(err, auth.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, repositories.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign up"})
		return
	}

	c.Set("userID", session.Identity.ID)
	audit(c, h.auditor, telemetry.ActionSignUp, "identity created", nil)
	c.JSON(http.StatusCreated, session)
}

// SignIn verifies credentials and returns a session.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		return
	}

	c.JSON(http.StatusOK, session)
}
