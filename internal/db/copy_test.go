package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "target_contacts", []string{"list_id", "voter_id"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"target_contacts"}, []string{"list_id", "voter_id"}).WillReturnResult(3)

	rows := [][]any{{int64(1), "V-1"}, {int64(1), "V-2"}, {int64(1), "V-3"}}
	n, err := CopyFrom(context.Background(), mock, "target_contacts", []string{"list_id", "voter_id"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"target_contacts"}, []string{"voter_id"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "target_contacts", []string{"voter_id"}, [][]any{{"V-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO target_contacts")
	assert.NoError(t, mock.ExpectationsWereMet())
}
