package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueoctober14/RightImpact/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_GetSourceContact_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM shared_contacts WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetSourceContact(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSourceContact_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM shared_contacts WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(errors.New("connection lost"))

	_, err := s.GetSourceContact(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get source contact 42")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTargetList_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM target_lists WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	l, err := s.GetTargetList(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSourceMatched(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE shared_contacts SET matched = true`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkSourceMatched(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkTargetMatched_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE target_contacts`).
		WithArgs(int64(9), "high", 1.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkTargetMatched(context.Background(), 9, model.ConfidenceHigh, 1.0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	score := 0.8

	mock.ExpectQuery(`INSERT INTO contact_matches .* ON CONFLICT \(shared_contact_id, target_contact_id\) DO NOTHING`).
		WithArgs(int64(1), int64(2), int64(3), 0.8, "medium", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	m := &model.ContactMatch{
		SourceContactID: 1,
		TargetContactID: 2,
		TargetListID:    3,
		Confidence:      model.ConfidenceMedium,
		Score:           &score,
	}
	inserted, err := s.InsertMatch(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(11), m.ID)
	assert.False(t, m.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMatch_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO contact_matches`).
		WithArgs(int64(1), int64(2), int64(3), nil, "high", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	m := &model.ContactMatch{SourceContactID: 1, TargetContactID: 2, TargetListID: 3, Confidence: model.ConfidenceHigh}
	inserted, err := s.InsertMatch(context.Background(), m)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MatchExists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.MatchExists(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UnmatchedSourceContactIDs_WithUsers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`NOT EXISTS .* AND s.user_id = ANY\(\$1\) ORDER BY s.id`).
		WithArgs([]int64{5, 6}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(4)))

	ids, err := s.UnmatchedSourceContactIDs(context.Background(), []int64{5, 6})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SourceContactIDsWithoutListMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`m.target_list_id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(8)))

	ids, err := s.SourceContactIDsWithoutListMatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{8}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindTargetContactsByPhone_EmptyPhones(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	out, err := s.FindTargetContactsByPhone(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunInTx_Commit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE shared_contacts SET matched = true`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.RunInTx(context.Background(), func(q Queries) error {
		return q.MarkSourceMatched(context.Background(), 3)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunInTx_RollbackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE shared_contacts SET matched = true`).
		WithArgs(int64(3)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(q Queries) error {
		return q.MarkSourceMatched(context.Background(), 3)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO match_jobs`).
		WithArgs("job-1", "match_target_list", "queued", []byte(`{"target_list_id":4}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job := &model.Job{ID: "job-1", Kind: model.JobKindTargetList, Params: model.JobParams{TargetListID: 4}}
	require.NoError(t, s.CreateJob(context.Background(), job))
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE match_jobs SET status = \$1, started_at = \$2 WHERE id = \$3`).
		WithArgs("running", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.StartJob(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM match_jobs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	j, err := s.GetJob(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, j)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS shared_contacts`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteTargetContactsByVoterIDs_NoneFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, list_id FROM target_contacts WHERE voter_id = ANY\(\$1\)`).
		WithArgs([]string{"V-404"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "list_id"}))
	mock.ExpectRollback()

	n, err := s.DeleteTargetContactsByVoterIDs(context.Background(), []string{"V-404"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportTargetContacts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"target_contacts"}, targetImportColumns).WillReturnResult(2)
	mock.ExpectExec(`UPDATE target_lists SET`).
		WithArgs(int64(5), int64(2), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := s.ImportTargetContacts(context.Background(), 5, []model.TargetContact{
		{VoterID: "V-1", FirstName: "Ana", LastName: "Ruiz", ZipCode: "73301", Cell1: "5551234567"},
		{VoterID: "V-2", FirstName: "Bo", LastName: "Ng", ZipCode: "73301"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportTargetContacts_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"target_contacts"}, targetImportColumns).WillReturnError(errors.New("violates foreign key"))
	mock.ExpectRollback()

	_, err := s.ImportTargetContacts(context.Background(), 5, []model.TargetContact{{VoterID: "V-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import target contacts into list 5")
	assert.NoError(t, mock.ExpectationsWereMet())
}
