package repositories

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
)

const (
	ownerID = "11111111-1111-4111-8111-111111111111"
	peerID  = "22222222-2222-4222-8222-222222222222"
	thirdID = "33333333-3333-4333-8333-333333333333"
	roomID  = "44444444-4444-4444-8444-444444444444"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "postgres")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func q(query string) string { return regexp.QuoteMeta(query) }

func roomRow(name any, isGroup bool, aiPersona any) *sqlmock.Rows {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "name", "is_group", "created_by", "ai_persona", "created_at", "updated_at"}).
		AddRow(roomID, name, isGroup, ownerID, aiPersona, now, now)
}

func TestCreateRoomInsertsMembersAndCommits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)
	name := "Team"

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO chat_rooms (name, is_group, created_by, ai_persona)`)).
		WithArgs("Team", true, ownerID, nil).
		WillReturnRows(roomRow("Team", true, nil))
	// owner joins even when not listed; duplicates collapse; ids insert sorted
	for _, id := range []string{ownerID, peerID, thirdID} {
		mock.ExpectExec(q(`INSERT INTO chat_participants (room_id, user_id)`)).
			WithArgs(roomID, id).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	room, err := repo.CreateRoom(context.Background(), ownerID, models.NewRoom{
		Name:           &name,
		IsGroup:        true,
		ParticipantIDs: []string{thirdID, peerID, thirdID},
	})
	require.NoError(t, err)
	assert.Equal(t, roomID, room.ID)
	require.NotNil(t, room.Name)
	assert.Equal(t, "Team", *room.Name)
	assert.True(t, room.IsGroup)
	assert.Nil(t, room.AIPersona)
}

func TestCreateRoomPersonaRoomHasOnlyOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)
	name := "Tutor"
	persona := "tutor"

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO chat_rooms`)).
		WithArgs("Tutor", false, ownerID, "tutor").
		WillReturnRows(roomRow("Tutor", false, "tutor"))
	mock.ExpectExec(q(`INSERT INTO chat_participants (room_id, user_id)`)).
		WithArgs(roomID, ownerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	room, err := repo.CreateRoom(context.Background(), ownerID, models.NewRoom{Name: &name, AIPersona: &persona})
	require.NoError(t, err)
	require.NotNil(t, room.AIPersona)
	assert.Equal(t, "tutor", *room.AIPersona)
}

func TestCreateRoomRollsBackWhenParticipantInsertFails(t *testing.T) {
	tests := []struct {
		name    string
		failure error
		want    error
	}{
		{name: "database error", failure: errors.New("connection reset")},
		{name: "unknown identity", failure: &pq.Error{Code: "23503"}, want: ErrUnknownUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewRoomRepo(db)

			mock.ExpectBegin()
			mock.ExpectQuery(q(`INSERT INTO chat_rooms`)).
				WithArgs(nil, false, ownerID, nil).
				WillReturnRows(roomRow(nil, false, nil))
			mock.ExpectExec(q(`INSERT INTO chat_participants`)).
				WithArgs(roomID, ownerID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(q(`INSERT INTO chat_participants`)).
				WithArgs(roomID, peerID).
				WillReturnError(tt.failure)
			mock.ExpectRollback()

			_, err := repo.CreateRoom(context.Background(), ownerID, models.NewRoom{ParticipantIDs: []string{peerID}})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func expectLockedRoom(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT id FROM chat_rooms WHERE id=$1 FOR UPDATE`)).
		WithArgs(roomID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(roomID))
}

func TestLeaveRoomLastParticipantTearsDownRoom(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	expectLockedRoom(mock)
	mock.ExpectExec(q(`DELETE FROM chat_participants WHERE room_id=$1 AND user_id=$2`)).
		WithArgs(roomID, ownerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM chat_participants WHERE room_id=$1`)).
		WithArgs(roomID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(q(`DELETE FROM messages WHERE room_id=$1`)).
		WithArgs(roomID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q(`DELETE FROM chat_rooms WHERE id=$1`)).
		WithArgs(roomID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.LeaveRoom(context.Background(), roomID, ownerID)
	require.NoError(t, err)
	assert.True(t, result.RoomDeleted)
	assert.Zero(t, result.Remaining)
}

func TestLeaveRoomOthersRemain(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	expectLockedRoom(mock)
	mock.ExpectExec(q(`DELETE FROM chat_participants`)).
		WithArgs(roomID, ownerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM chat_participants`)).
		WithArgs(roomID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	result, err := repo.LeaveRoom(context.Background(), roomID, ownerID)
	require.NoError(t, err)
	assert.False(t, result.RoomDeleted)
	assert.Equal(t, 2, result.Remaining)
}

func TestLeaveRoomNotParticipantRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	expectLockedRoom(mock)
	mock.ExpectExec(q(`DELETE FROM chat_participants`)).
		WithArgs(roomID, thirdID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.LeaveRoom(context.Background(), roomID, thirdID)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestLeaveRoomMissingRoomRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT id FROM chat_rooms WHERE id=$1 FOR UPDATE`)).
		WithArgs(roomID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.LeaveRoom(context.Background(), roomID, ownerID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeaveRoomTeardownFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)

	expectLockedRoom(mock)
	mock.ExpectExec(q(`DELETE FROM chat_participants`)).
		WithArgs(roomID, ownerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM chat_participants`)).
		WithArgs(roomID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(q(`DELETE FROM messages`)).
		WithArgs(roomID).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.LeaveRoom(context.Background(), roomID, ownerID)
	require.Error(t, err)
}

func TestCreateFriendshipMapsUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFriendshipRepo(db)

	mock.ExpectQuery(q(`INSERT INTO friendships (requester_id, addressee_id, status)`)).
		WithArgs(ownerID, peerID, "accepted").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateFriendship(context.Background(), ownerID, peerID, models.FriendshipAccepted)
	assert.ErrorIs(t, err, ErrFriendshipExists)

	_, err = repo.CreateFriendship(context.Background(), ownerID, ownerID, models.FriendshipAccepted)
	assert.ErrorIs(t, err, ErrSelfFriendship)
}
