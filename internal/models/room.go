package models

import "time"

// Room is a conversation, either 1:1 or group.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	IsGroup   bool      `db:"is_group" json:"is_group"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	AIPersona *string   `db:"ai_persona" json:"ai_persona,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Participant is the membership edge between a room and an identity.
type Participant struct {
	ID       string    `db:"id" json:"id"`
	RoomID   string    `db:"room_id" json:"room_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// ParticipantView is a participant joined with its profile.
type ParticipantView struct {
	Participant
	Profile *Profile `json:"profile,omitempty"`
}

// RoomDetails is a room with its profile-joined participants.
type RoomDetails struct {
	Room
	Participants []ParticipantView `json:"participants"`
}

// NewRoom is the payload for creating a room together with its participants.
// A room bound to an AI persona may have the caller as its only member.
type NewRoom struct {
	Name           *string  `json:"name,omitempty"`
	IsGroup        bool     `json:"is_group"`
	ParticipantIDs []string `json:"participant_ids"`
	AIPersona      *string  `json:"ai_persona,omitempty"`
}

// LeaveResult reports what happened to a room after a participant left.
type LeaveResult struct {
	Remaining   int  `json:"remaining"`
	RoomDeleted bool `json:"room_deleted"`
}
