package models

import "time"

// FriendshipStatus is the state of a friendship edge.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship is a directed edge between two identities. Accepted edges are
// treated as symmetric.
type Friendship struct {
	ID          string           `db:"id" json:"id"`
	RequesterID string           `db:"requester_id" json:"requester_id"`
	AddresseeID string           `db:"addressee_id" json:"addressee_id"`
	Status      FriendshipStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// Counterpart returns the other side of the edge as seen by userID.
func (f Friendship) Counterpart(userID string) string {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// Valid reports whether s is a known friendship status.
func (s FriendshipStatus) Valid() bool {
	switch s {
	case FriendshipPending, FriendshipAccepted, FriendshipBlocked:
		return true
	}
	return false
}
