package models

import (
	"strings"
	"time"
)

// ProfileStatus is the presence state shown next to a profile.
type ProfileStatus string

const (
	StatusOnline  ProfileStatus = "online"
	StatusOffline ProfileStatus = "offline"
	StatusAway    ProfileStatus = "away"
)

// Valid reports whether s is one of the known presence states.
func (s ProfileStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway:
		return true
	}
	return false
}

// Identity is an authenticated account.
type Identity struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Profile is the display-facing record attached to an identity.
type Profile struct {
	ID          string        `db:"id" json:"id"`
	UserID      string        `db:"user_id" json:"user_id"`
	Email       string        `db:"email" json:"email"`
	DisplayName *string       `db:"display_name" json:"display_name,omitempty"`
	AvatarURL   *string       `db:"avatar_url" json:"avatar_url,omitempty"`
	Status      ProfileStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// Name returns the display name, falling back to the local part of the email.
func (p Profile) Name() string {
	if p.DisplayName != nil && strings.TrimSpace(*p.DisplayName) != "" {
		return *p.DisplayName
	}
	return EmailLocalPart(p.Email)
}

// ProfileUpdate carries the mutable profile fields; nil fields are left as is.
type ProfileUpdate struct {
	DisplayName *string        `json:"display_name,omitempty"`
	AvatarURL   *string        `json:"avatar_url,omitempty"`
	Status      *ProfileStatus `json:"status,omitempty"`
}

// EmailLocalPart returns everything before the first '@'.
func EmailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
