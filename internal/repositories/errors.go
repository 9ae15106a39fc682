package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrFriendshipNotFound = errors.New("friendship not found")
	ErrFriendshipExists   = errors.New("friendship already exists")
	ErrSelfFriendship     = errors.New("cannot befriend self")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotParticipant     = errors.New("not a room participant")
	ErrUnknownUser        = errors.New("unknown user")
)

func isUniqueViolation(err error) bool {
	return hasCode(err, "23505")
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, "23503")
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
