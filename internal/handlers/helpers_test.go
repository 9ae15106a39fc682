package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/telemetry"
)

const (
	callerID = "11111111-1111-4111-8111-111111111111"
	friendID = "22222222-2222-4222-8222-222222222222"
	otherID  = "33333333-3333-4333-8333-333333333333"
	roomID   = "44444444-4444-4444-8444-444444444444"
	room2ID  = "55555555-5555-4555-8555-555555555555"
)

func strPtr(s string) *string { return &s }

type auditCall struct {
	action string
	userID *string
	attrs  map[string]string
}

type recordingAuditor struct {
	calls []auditCall
}

func (a *recordingAuditor) Record(_ context.Context, ev telemetry.Event) {
	a.calls = append(a.calls, auditCall{action: ev.Action, userID: ev.UserID, attrs: ev.Attrs})
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", callerID)
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}
