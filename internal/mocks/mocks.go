package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
)

type IdentityRepositoryMock struct {
	mock.Mock
}

func (m *IdentityRepositoryMock) CreateIdentity(ctx context.Context, email, passwordHash string, displayName *string) (models.Identity, models.Profile, error) {
	args := m.Called(ctx, email, passwordHash, displayName)
	var identity models.Identity
	if val := args.Get(0); val != nil {
		identity = val.(models.Identity)
	}
	var profile models.Profile
	if val := args.Get(1); val != nil {
		profile = val.(models.Profile)
	}
	return identity, profile, args.Error(2)
}

func (m *IdentityRepositoryMock) GetByEmail(ctx context.Context, email string) (models.Identity, error) {
	args := m.Called(ctx, email)
	var identity models.Identity
	if val := args.Get(0); val != nil {
		identity = val.(models.Identity)
	}
	return identity, args.Error(1)
}

func (m *IdentityRepositoryMock) GetByID(ctx context.Context, id string) (models.Identity, error) {
	args := m.Called(ctx, id)
	var identity models.Identity
	if val := args.Get(0); val != nil {
		identity = val.(models.Identity)
	}
	return identity, args.Error(1)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) GetByUserID(ctx context.Context, userID string) (models.Profile, error) {
	args := m.Called(ctx, userID)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

func (m *ProfileRepositoryMock) GetByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	args := m.Called(ctx, userIDs)
	var profiles []models.Profile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.Profile)
	}
	return profiles, args.Error(1)
}

func (m *ProfileRepositoryMock) FindByEmail(ctx context.Context, email string) (models.Profile, error) {
	args := m.Called(ctx, email)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

func (m *ProfileRepositoryMock) EnsureProfile(ctx context.Context, identity models.Identity, displayName *string) (models.Profile, error) {
	args := m.Called(ctx, identity, displayName)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

func (m *ProfileRepositoryMock) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.Profile, error) {
	args := m.Called(ctx, userID, update)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

type FriendshipRepositoryMock struct {
	mock.Mock
}

func (m *FriendshipRepositoryMock) ListAccepted(ctx context.Context, userID string, limit int) ([]models.Friendship, error) {
	args := m.Called(ctx, userID, limit)
	var edges []models.Friendship
	if val := args.Get(0); val != nil {
		edges = val.([]models.Friendship)
	}
	return edges, args.Error(1)
}

func (m *FriendshipRepositoryMock) FindAccepted(ctx context.Context, userID, otherID string) (models.Friendship, error) {
	args := m.Called(ctx, userID, otherID)
	var edge models.Friendship
	if val := args.Get(0); val != nil {
		edge = val.(models.Friendship)
	}
	return edge, args.Error(1)
}

func (m *FriendshipRepositoryMock) CreateFriendship(ctx context.Context, requesterID, addresseeID string, status models.FriendshipStatus) (models.Friendship, error) {
	args := m.Called(ctx, requesterID, addresseeID, status)
	var edge models.Friendship
	if val := args.Get(0); val != nil {
		edge = val.(models.Friendship)
	}
	return edge, args.Error(1)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) ListRoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomsForUser(ctx context.Context, userID string, roomIDs []string, limit int) ([]models.Room, error) {
	args := m.Called(ctx, userID, roomIDs, limit)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) ListParticipants(ctx context.Context, roomIDs []string) ([]models.Participant, error) {
	args := m.Called(ctx, roomIDs)
	var participants []models.Participant
	if val := args.Get(0); val != nil {
		participants = val.([]models.Participant)
	}
	return participants, args.Error(1)
}

func (m *RoomRepositoryMock) ParticipantIDs(ctx context.Context, roomID string) ([]string, error) {
	args := m.Called(ctx, roomID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *RoomRepositoryMock) IsParticipant(ctx context.Context, roomID string, userID string) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, ownerID string, room models.NewRoom) (models.Room, error) {
	args := m.Called(ctx, ownerID, room)
	var created models.Room
	if val := args.Get(0); val != nil {
		created = val.(models.Room)
	}
	return created, args.Error(1)
}

func (m *RoomRepositoryMock) TouchRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) LeaveRoom(ctx context.Context, roomID string, userID string) (models.LeaveResult, error) {
	args := m.Called(ctx, roomID, userID)
	var result models.LeaveResult
	if val := args.Get(0); val != nil {
		result = val.(models.LeaveResult)
	}
	return result, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, roomID string, senderID string, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, roomID, senderID, msg)
	var created models.Message
	if val := args.Get(0); val != nil {
		created = val.(models.Message)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastMessage(recipientIDs []string, msg models.Message) {
	m.Called(recipientIDs, msg)
}

var _ repositories.IdentityRepository = (*IdentityRepositoryMock)(nil)
var _ repositories.ProfileRepository = (*ProfileRepositoryMock)(nil)
var _ repositories.FriendshipRepository = (*FriendshipRepositoryMock)(nil)
var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ interface {
	BroadcastMessage([]string, models.Message)
} = (*BroadcasterMock)(nil)

// PublisherMock stands in for the broker publisher and the lifecycle event sink.
type PublisherMock struct {
	mock.Mock
}

var _ rabbitmq.Publisher = (*PublisherMock)(nil)
var _ observability.Publisher = (*PublisherMock)(nil)

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	args := m.Called(ctx, routingKey, message, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// CaptureEventNames accepts every PublishJSON call on routingKey and sends
// the envelope's event name to the returned channel.
func (m *PublisherMock) CaptureEventNames(routingKey string, buffer int) <-chan string {
	names := make(chan string, buffer)
	m.On("PublishJSON", mock.Anything, routingKey, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			if env, ok := args.Get(2).(observability.EventEnvelope); ok {
				names <- env.EventName
			}
		}).
		Return(nil)
	return names
}
