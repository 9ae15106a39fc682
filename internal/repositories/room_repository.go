package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

const roomColumns = `id, name, is_group, created_by, ai_persona, created_at, updated_at`

// RoomRepository abstracts room and participant persistence.
type RoomRepository interface {
	ListRoomIDsForUser(ctx context.Context, userID string) ([]string, error)
	ListRoomsForUser(ctx context.Context, userID string, roomIDs []string, limit int) ([]models.Room, error)
	ListParticipants(ctx context.Context, roomIDs []string) ([]models.Participant, error)
	ParticipantIDs(ctx context.Context, roomID string) ([]string, error)
	IsParticipant(ctx context.Context, roomID string, userID string) (bool, error)
	CreateRoom(ctx context.Context, ownerID string, room models.NewRoom) (models.Room, error)
	TouchRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string, userID string) (models.LeaveResult, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// ListRoomIDsForUser returns ids of rooms the user participates in.
func (r *RoomRepo) ListRoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `SELECT room_id FROM chat_participants WHERE user_id=$1`, userID)
	return ids, err
}

// ListRoomsForUser returns the requested rooms the user participates in,
// most recently updated first.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID string, roomIDs []string, limit int) ([]models.Room, error) {
	rooms := []models.Room{}
	if len(roomIDs) == 0 {
		return rooms, nil
	}
	err := r.db.SelectContext(ctx, &rooms, `SELECT r.id, r.name, r.is_group, r.created_by, r.ai_persona, r.created_at, r.updated_at
        FROM chat_rooms r
        WHERE r.id = ANY($1::uuid[])
        AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.room_id = r.id AND p.user_id = $2)
        ORDER BY r.updated_at DESC
        LIMIT $3`, pq.Array(roomIDs), userID, limit)
	return rooms, err
}

// ListParticipants returns participant rows for the given rooms.
func (r *RoomRepo) ListParticipants(ctx context.Context, roomIDs []string) ([]models.Participant, error) {
	participants := []models.Participant{}
	if len(roomIDs) == 0 {
		return participants, nil
	}
	err := r.db.SelectContext(ctx, &participants, `SELECT id, room_id, user_id, joined_at FROM chat_participants
        WHERE room_id = ANY($1::uuid[]) ORDER BY joined_at ASC`, pq.Array(roomIDs))
	return participants, err
}

// ParticipantIDs returns the identity ids participating in a room.
func (r *RoomRepo) ParticipantIDs(ctx context.Context, roomID string) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM chat_participants WHERE room_id=$1`, roomID)
	return ids, err
}

// IsParticipant checks membership.
func (r *RoomRepo) IsParticipant(ctx context.Context, roomID string, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// CreateRoom creates a room and its participants atomically. The owner is
// always a participant.
func (r *RoomRepo) CreateRoom(ctx context.Context, ownerID string, room models.NewRoom) (models.Room, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var created models.Room
	if err = tx.GetContext(ctx, &created, `INSERT INTO chat_rooms (name, is_group, created_by, ai_persona) VALUES ($1, $2, $3, $4) RETURNING `+roomColumns,
		room.Name, room.IsGroup, ownerID, room.AIPersona); err != nil {
		return models.Room{}, err
	}

	// ensure owner present and dedupe participants
	memberSet := map[string]struct{}{ownerID: {}}
	for _, id := range room.ParticipantIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]string, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO chat_participants (room_id, user_id) VALUES ($1, $2)`, created.ID, id); err != nil {
			if isForeignKeyViolation(err) {
				return models.Room{}, ErrUnknownUser
			}
			return models.Room{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return created, nil
}

// TouchRoom bumps the room's recency marker.
func (r *RoomRepo) TouchRoom(ctx context.Context, roomID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_rooms SET updated_at = NOW() WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// LeaveRoom removes the user's participant edge. When nobody is left the
// room's messages and the room itself are deleted in the same transaction.
func (r *RoomRepo) LeaveRoom(ctx context.Context, roomID string, userID string) (models.LeaveResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.LeaveResult{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var lockedID string
	if err = tx.GetContext(ctx, &lockedID, `SELECT id FROM chat_rooms WHERE id=$1 FOR UPDATE`, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrRoomNotFound
		}
		return models.LeaveResult{}, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM chat_participants WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return models.LeaveResult{}, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return models.LeaveResult{}, err
	}
	if removed == 0 {
		err = ErrNotParticipant
		return models.LeaveResult{}, err
	}

	var result models.LeaveResult
	if err = tx.GetContext(ctx, &result.Remaining, `SELECT COUNT(*) FROM chat_participants WHERE room_id=$1`, roomID); err != nil {
		return models.LeaveResult{}, err
	}

	if result.Remaining == 0 {
		if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE room_id=$1`, roomID); err != nil {
			return models.LeaveResult{}, err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM chat_rooms WHERE id=$1`, roomID); err != nil {
			return models.LeaveResult{}, err
		}
		result.RoomDeleted = true
	}

	if err = tx.Commit(); err != nil {
		return models.LeaveResult{}, err
	}
	return result, nil
}
