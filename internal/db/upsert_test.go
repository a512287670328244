package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "opportunities",
		Columns:      []string{"platform", "product_id", "score"},
		ConflictKeys: []string{"platform", "product_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "opportunities",
		ConflictKeys: []string{"platform"},
	}, [][]any{{"gumroad"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "opportunities",
		Columns: []string{"platform", "product_id"},
	}, [][]any{{"gumroad", "alpha"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_opportunities"}, []string{"platform", "product_id", "score"}).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO .opportunities.").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	rows := [][]any{
		{"gumroad", "alpha", 71.5},
		{"gumroad", "beta", 42.0},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "opportunities",
		Columns:      []string{"platform", "product_id", "score"},
		ConflictKeys: []string{"platform", "product_id"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"snapshots", `"snapshots"`},
		{"radar.snapshots", `"radar"."snapshots"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"platform", "product_id", "score"})
	assert.Equal(t, `"platform", "product_id", "score"`, result)
}
