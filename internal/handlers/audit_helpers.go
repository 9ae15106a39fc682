package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/telemetry"
)

const requestIDContextKey = "request_id"

// Auditor records audited actions.
type Auditor interface {
	Record(ctx context.Context, ev telemetry.Event)
}

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if userID := c.GetString("userID"); userID != "" {
		return &userID
	}
	return nil
}

func audit(c *gin.Context, auditor Auditor, action, text string, attrs map[string]string) {
	if auditor == nil {
		return
	}
	auditor.Record(c.Request.Context(), telemetry.Event{
		Action:    action,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c),
		Attrs:     attrs,
	})
}

// uuidParam reads a path parameter and answers 400 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	if _, err := uuid.Parse(raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + strings.ReplaceAll(name, "_", " ")})
		return "", false
	}
	return raw, true
}

// idList parses a comma separated list of UUIDs from a query parameter.
func idList(raw string) ([]string, bool) {
	ids := []string{}
	if strings.TrimSpace(raw) == "" {
		return ids, true
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := uuid.Parse(part); err != nil {
			return nil, false
		}
		ids = append(ids, part)
	}
	return ids, true
}

var _ Auditor = (*telemetry.AuditEmitter)(nil)
