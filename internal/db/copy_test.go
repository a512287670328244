package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "snapshots", []string{"platform", "product_id"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"snapshots"}, []string{"platform", "product_id"}).WillReturnResult(3)

	rows := [][]any{{"gumroad", "alpha"}, {"gumroad", "beta"}, {"whop", "gamma"}}
	n, err := CopyFrom(context.Background(), mock, "snapshots", []string{"platform", "product_id"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"snapshots"}, []string{"platform"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"gumroad"}}
	_, err = CopyFrom(context.Background(), mock, "snapshots", []string{"platform"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO snapshots")
	assert.NoError(t, mock.ExpectationsWereMet())
}
