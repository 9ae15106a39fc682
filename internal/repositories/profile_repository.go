package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

const profileColumns = `id, user_id, email, display_name, avatar_url, status, created_at, updated_at`

// ProfileRepository abstracts profile persistence.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (models.Profile, error)
	GetByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error)
	FindByEmail(ctx context.Context, email string) (models.Profile, error)
	EnsureProfile(ctx context.Context, identity models.Identity, displayName *string) (models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.Profile, error)
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetByUserID fetches the profile owned by an identity.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID string) (models.Profile, error) {
	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT `+profileColumns+` FROM profiles WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return profile, err
}

// GetByUserIDs batch-fetches profiles. Missing ids are skipped.
func (r *ProfileRepo) GetByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	profiles := []models.Profile{}
	if len(userIDs) == 0 {
		return profiles, nil
	}
	err := r.db.SelectContext(ctx, &profiles, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ANY($1::uuid[])`, pq.Array(userIDs))
	return profiles, err
}

// FindByEmail looks a profile up by case-insensitive email.
func (r *ProfileRepo) FindByEmail(ctx context.Context, email string) (models.Profile, error) {
	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT `+profileColumns+` FROM profiles WHERE lower(email)=lower($1) LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return profile, err
}

// EnsureProfile creates the profile for an identity if it does not exist yet.
func (r *ProfileRepo) EnsureProfile(ctx context.Context, identity models.Identity, displayName *string) (models.Profile, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO profiles (user_id, email, display_name) VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO NOTHING`, identity.ID, identity.Email, displayName); err != nil {
		return models.Profile{}, err
	}
	return r.GetByUserID(ctx, identity.ID)
}

// UpdateProfile applies the non-nil fields of update.
func (r *ProfileRepo) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.Profile, error) {
	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}

	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, `UPDATE profiles SET
            display_name = COALESCE($2, display_name),
            avatar_url = COALESCE($3, avatar_url),
            status = COALESCE($4, status),
            updated_at = NOW()
        WHERE user_id=$1 RETURNING `+profileColumns, userID, update.DisplayName, update.AvatarURL, status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return profile, err
}
