package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// IdentityRepository abstracts account persistence.
type IdentityRepository interface {
	CreateIdentity(ctx context.Context, email, passwordHash string, displayName *string) (models.Identity, models.Profile, error)
	GetByEmail(ctx context.Context, email string) (models.Identity, error)
	GetByID(ctx context.Context, id string) (models.Identity, error)
}

// IdentityRepo is a sqlx implementation of IdentityRepository.
type IdentityRepo struct {
	db *sqlx.DB
}

// NewIdentityRepo constructs an IdentityRepo.
func NewIdentityRepo(db *sqlx.DB) *IdentityRepo {
	return &IdentityRepo{db: db}
}

// CreateIdentity inserts an identity and its profile atomically.
func (r *IdentityRepo) CreateIdentity(ctx context.Context, email, passwordHash string, displayName *string) (models.Identity, models.Profile, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Identity{}, models.Profile{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var identity models.Identity
	err = tx.GetContext(ctx, &identity, `INSERT INTO identities (email, password_hash) VALUES ($1, $2) RETURNING id, email, password_hash, created_at`, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Identity{}, models.Profile{}, ErrEmailTaken
		}
		return models.Identity{}, models.Profile{}, err
	}

	var profile models.Profile
	err = tx.GetContext(ctx, &profile, `INSERT INTO profiles (user_id, email, display_name) VALUES ($1, $2, $3) RETURNING `+profileColumns, identity.ID, email, displayName)
	if err != nil {
		return models.Identity{}, models.Profile{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Identity{}, models.Profile{}, err
	}
	return identity, profile, nil
}

// GetByEmail fetches an identity by its normalized email.
func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (models.Identity, error) {
	var identity models.Identity
	err := r.db.GetContext(ctx, &identity, `SELECT id, email, password_hash, created_at FROM identities WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, ErrIdentityNotFound
	}
	return identity, err
}

// GetByID fetches an identity by id.
func (r *IdentityRepo) GetByID(ctx context.Context, id string) (models.Identity, error) {
	var identity models.Identity
	err := r.db.GetContext(ctx, &identity, `SELECT id, email, password_hash, created_at FROM identities WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, ErrIdentityNotFound
	}
	return identity, err
}
