package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/telemetry"
)

func setupMessageRouter(handler *MessageHandler) http.Handler {
	r := newRouter()
	r.GET("/rooms/:room_id/messages", handler.List)
	r.POST("/rooms/:room_id/messages", handler.Create)
	return r
}

func TestListMessagesRequiresParticipant(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(rooms, messages, nil, nil))

	rooms.On("IsParticipant", mock.Anything, roomID, callerID).Return(false, nil).Once()

	rec := doJSON(t, router, http.MethodGet, "/rooms/"+roomID+"/messages", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
}

func TestListMessages(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(rooms, messages, nil, nil))

	rooms.On("IsParticipant", mock.Anything, roomID, callerID).Return(true, nil).Once()
	messages.On("ListMessages", mock.Anything, roomID).Return([]models.Message{
		{ID: "m1", RoomID: roomID, Content: "first"},
		{ID: "m2", RoomID: roomID, Content: "second"},
	}, nil).Once()

	rec := doJSON(t, router, http.MethodGet, "/rooms/"+roomID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "first", resp.Messages[0].Content)
}

func TestCreateMessageBroadcastsToParticipants(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	auditor := &recordingAuditor{}
	router := setupMessageRouter(NewMessageHandler(rooms, messages, hub, auditor))

	stored := models.Message{ID: "m1", RoomID: roomID, SenderID: callerID, Content: "hello", MessageType: models.MessageText}
	rooms.On("IsParticipant", mock.Anything, roomID, callerID).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, roomID, callerID, models.NewMessage{Content: "hello", MessageType: models.MessageText}).
		Return(stored, nil).Once()
	rooms.On("ParticipantIDs", mock.Anything, roomID).Return([]string{callerID, friendID}, nil).Once()
	hub.On("BroadcastMessage", []string{callerID, friendID}, stored).Once()

	rec := doJSON(t, router, http.MethodPost, "/rooms/"+roomID+"/messages", map[string]string{"content": "  hello  "})
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	decode(t, rec, &msg)
	assert.Equal(t, "m1", msg.ID)
	require.Len(t, auditor.calls, 1)
	assert.Equal(t, telemetry.ActionMessageSent, auditor.calls[0].action)

	rooms.AssertExpectations(t)
	messages.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestCreateMessageKeepsAIPersona(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(rooms, messages, nil, nil))

	persona := "tutor"
	payload := models.NewMessage{Content: "explain", MessageType: models.MessageAI, AIPersona: &persona}
	rooms.On("IsParticipant", mock.Anything, roomID, callerID).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, roomID, callerID, payload).
		Return(models.Message{ID: "m9", MessageType: models.MessageAI, AIPersona: &persona}, nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/rooms/"+roomID+"/messages", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	messages.AssertExpectations(t)
}

func TestCreateMessageValidation(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(rooms, messages, nil, nil))

	rec := doJSON(t, router, http.MethodPost, "/rooms/"+roomID+"/messages", map[string]string{"content": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/rooms/"+roomID+"/messages", map[string]string{"content": "x", "message_type": "video"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/rooms/bad/messages", map[string]string{"content": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateMessageStoreFailure(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	router := setupMessageRouter(NewMessageHandler(rooms, messages, hub, nil))

	rooms.On("IsParticipant", mock.Anything, roomID, callerID).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, roomID, callerID, mock.Anything).Return(nil, assert.AnError).Once()

	rec := doJSON(t, router, http.MethodPost, "/rooms/"+roomID+"/messages", map[string]string{"content": "hi"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	hub.AssertNotCalled(t, "BroadcastMessage", mock.Anything, mock.Anything)
}
