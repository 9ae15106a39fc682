package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

const friendshipColumns = `id, requester_id, addressee_id, status, created_at, updated_at`

// FriendshipRepository abstracts friendship persistence.
type FriendshipRepository interface {
	ListAccepted(ctx context.Context, userID string, limit int) ([]models.Friendship, error)
	FindAccepted(ctx context.Context, userID, otherID string) (models.Friendship, error)
	CreateFriendship(ctx context.Context, requesterID, addresseeID string, status models.FriendshipStatus) (models.Friendship, error)
}

// FriendshipRepo is a sqlx implementation of FriendshipRepository.
type FriendshipRepo struct {
	db *sqlx.DB
}

// NewFriendshipRepo constructs a FriendshipRepo.
func NewFriendshipRepo(db *sqlx.DB) *FriendshipRepo {
	return &FriendshipRepo{db: db}
}

// ListAccepted returns accepted edges where the user is either side.
func (r *FriendshipRepo) ListAccepted(ctx context.Context, userID string, limit int) ([]models.Friendship, error) {
	friendships := []models.Friendship{}
	err := r.db.SelectContext(ctx, &friendships, `SELECT `+friendshipColumns+` FROM friendships
        WHERE status = 'accepted' AND (requester_id=$1 OR addressee_id=$1)
        ORDER BY created_at ASC
        LIMIT $2`, userID, limit)
	return friendships, err
}

// FindAccepted returns the accepted edge between two users in either direction.
func (r *FriendshipRepo) FindAccepted(ctx context.Context, userID, otherID string) (models.Friendship, error) {
	var friendship models.Friendship
	err := r.db.GetContext(ctx, &friendship, `SELECT `+friendshipColumns+` FROM friendships
        WHERE status = 'accepted'
        AND ((requester_id=$1 AND addressee_id=$2) OR (requester_id=$2 AND addressee_id=$1))
        LIMIT 1`, userID, otherID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Friendship{}, ErrFriendshipNotFound
	}
	return friendship, err
}

// CreateFriendship inserts a new edge.
func (r *FriendshipRepo) CreateFriendship(ctx context.Context, requesterID, addresseeID string, status models.FriendshipStatus) (models.Friendship, error) {
	if requesterID == addresseeID {
		return models.Friendship{}, ErrSelfFriendship
	}
	var friendship models.Friendship
	err := r.db.GetContext(ctx, &friendship, `INSERT INTO friendships (requester_id, addressee_id, status) VALUES ($1, $2, $3) RETURNING `+friendshipColumns,
		requesterID, addresseeID, string(status))
	if isUniqueViolation(err) {
		return models.Friendship{}, ErrFriendshipExists
	}
	return friendship, err
}
