// Package messenger keeps an identity's rooms, friends and the messages of
// the selected room in sync with the backend, applying optimistic updates
// for the identity's own writes and merging realtime inserts.
package messenger

import (
	"context"

	"github.com/pkg/errors"

	"messenger-service/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyFriends = errors.New("already friends")
	ErrCannotAddSelf  = errors.New("cannot add yourself as a friend")
	ErrEmptyContent   = errors.New("empty message content")
	ErrNoIdentity     = errors.New("no signed-in identity")
	ErrGroupName      = errors.New("group rooms need a name")
)

// Backend is the row store the engine reads from and writes to. Calls are
// made on behalf of the signed-in identity. Implementations report missing
// rows as ErrNotFound and uniqueness violations as ErrConflict.
type Backend interface {
	ParticipantRoomIDs(ctx context.Context) ([]string, error)
	Rooms(ctx context.Context, roomIDs []string, limit int) ([]models.RoomDetails, error)
	CreateRoom(ctx context.Context, room models.NewRoom) (models.Room, error)
	TouchRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) (models.LeaveResult, error)

	AcceptedFriendships(ctx context.Context, limit int) ([]models.Friendship, error)
	FindAcceptedFriendship(ctx context.Context, otherID string) (models.Friendship, error)
	InsertFriendship(ctx context.Context, addresseeID string, status models.FriendshipStatus) (models.Friendship, error)

	ProfilesByIDs(ctx context.Context, userIDs []string) ([]models.Profile, error)
	ProfileByEmail(ctx context.Context, email string) (models.Profile, error)

	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	InsertMessage(ctx context.Context, roomID string, msg models.NewMessage) (models.Message, error)
	SubscribeMessages(ctx context.Context) (Subscription, error)
}

// Subscription delivers message insert events until closed. Events is
// closed when the subscription ends.
type Subscription interface {
	Events() <-chan models.MessageEvent
	Close() error
}

// Identity is the signed-in actor the engine works for.
type Identity struct {
	ID      string
	Email   string
	Profile *models.Profile
}
