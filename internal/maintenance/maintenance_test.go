package maintenance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, opts ...Option) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	opts = append([]Option{WithRate(1000)}, opts...)
	return New(mock, opts...), mock
}

func idRows(ids ...string) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	return rows
}

func expectReports(mock pgxmock.PgxPoolIface, orphans OrphanReport, dups DuplicateReport, invalid InvalidReport) {
	mock.ExpectQuery(orphanFriendshipsSQL).WillReturnRows(idRows(orphans.Friendships...))
	mock.ExpectQuery(orphanParticipantsSQL).WillReturnRows(idRows(orphans.Participants...))
	mock.ExpectQuery(orphanMessagesSQL).WillReturnRows(idRows(orphans.Messages...))
	mock.ExpectQuery(emptyRoomsSQL).WillReturnRows(idRows(orphans.EmptyRooms...))
	mock.ExpectQuery(duplicateFriendshipsSQL).WillReturnRows(idRows(dups.Friendships...))
	mock.ExpectQuery(duplicateParticipantsSQL).WillReturnRows(idRows(dups.Participants...))
	mock.ExpectQuery(profilesMissingEmailSQL).WillReturnRows(idRows(invalid.ProfilesMissingEmail...))
	mock.ExpectQuery(profilesMissingNameSQL).WillReturnRows(idRows(invalid.ProfilesMissingName...))
	mock.ExpectQuery(selfFriendshipsSQL).WillReturnRows(idRows(invalid.SelfFriendships...))
	mock.ExpectQuery(emptyMessagesSQL).WillReturnRows(idRows(invalid.EmptyMessages...))
}

func TestTableStatus(t *testing.T) {
	svc, mock := newService(t)
	defer mock.Close()

	for i, table := range Tables {
		mock.ExpectQuery(fmt.Sprintf(`SELECT count(*) FROM %s`, table)).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(i)))
		sample := pgxmock.NewRows([]string{"row_to_json"})
		if i > 0 {
			sample.AddRow(`{"id":"x"}`)
		}
		mock.ExpectQuery(fmt.Sprintf(`SELECT row_to_json(t)::text FROM %s t LIMIT %d`, table, sampleSize)).
			WillReturnRows(sample)
	}

	reports, err := svc.TableStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, len(Tables))
	assert.Equal(t, "profiles", reports[0].Table)
	assert.Empty(t, reports[0].Sample)
	assert.Equal(t, int64(4), reports[4].Rows)
	assert.JSONEq(t, `{"id":"x"}`, string(reports[4].Sample[0]))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDuplicates(t *testing.T) {
	svc, mock := newService(t)
	defer mock.Close()

	mock.ExpectQuery(duplicateFriendshipsSQL).WillReturnRows(idRows("f2", "f3"))
	mock.ExpectQuery(duplicateParticipantsSQL).WillReturnRows(idRows())

	report, err := svc.FindDuplicates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"f2", "f3"}, report.Friendships)
	assert.Equal(t, []string{}, report.Participants)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrphansWrapsErrors(t *testing.T) {
	svc, mock := newService(t)
	defer mock.Close()

	mock.ExpectQuery(orphanFriendshipsSQL).WillReturnError(errors.New("boom"))

	_, err := svc.FindOrphans(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orphan friendships")
}

func TestCleanupDryRunDeletesNothing(t *testing.T) {
	svc, mock := newService(t)
	defer mock.Close()

	expectReports(mock,
		OrphanReport{Messages: []string{"m1"}, EmptyRooms: []string{"r1"}},
		DuplicateReport{Friendships: []string{"f2"}},
		InvalidReport{SelfFriendships: []string{"f2"}, EmptyMessages: []string{"m1", "m2"}},
	)

	result, err := svc.Cleanup(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Deleted["orphan_messages"])
	assert.Equal(t, 1, result.Deleted["empty_messages"], "m1 is already counted as an orphan")
	assert.Equal(t, 1, result.Deleted["duplicate_friendships"])
	assert.Equal(t, 0, result.Deleted["self_friendships"], "f2 is already counted as a duplicate")
	assert.Equal(t, 4, result.Total())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupDeletesInBatches(t *testing.T) {
	svc, mock := newService(t, WithBatchSize(2))
	defer mock.Close()

	expectReports(mock,
		OrphanReport{Messages: []string{"m1", "m2", "m3"}},
		DuplicateReport{Participants: []string{"p9"}},
		InvalidReport{ProfilesMissingName: []string{"pr1"}},
	)
	mock.ExpectExec(`DELETE FROM messages WHERE id = ANY($1::uuid[])`).
		WithArgs([]string{"m1", "m2"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM messages WHERE id = ANY($1::uuid[])`).
		WithArgs([]string{"m3"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM chat_participants WHERE id = ANY($1::uuid[])`).
		WithArgs([]string{"p9"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	result, err := svc.Cleanup(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.DryRun)
	assert.Equal(t, 3, result.Deleted["orphan_messages"])
	assert.Equal(t, 1, result.Deleted["duplicate_participants"])
	assert.Equal(t, 4, result.Total())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupStopsOnDeleteError(t *testing.T) {
	svc, mock := newService(t)
	defer mock.Close()

	expectReports(mock, OrphanReport{Messages: []string{"m1"}}, DuplicateReport{}, InvalidReport{})
	mock.ExpectExec(`DELETE FROM messages WHERE id = ANY($1::uuid[])`).
		WithArgs([]string{"m1"}).
		WillReturnError(errors.New("locked"))

	_, err := svc.Cleanup(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orphan_messages")
}
