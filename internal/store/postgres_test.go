package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichewatch/nichewatch/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func runRow(mock pgxmock.PgxPoolIface, id string, status model.RunStatus, startedAt time.Time) *pgxmock.Rows {
	return mock.NewRows([]string{
		"id", "platform", "category", "subcategory", "status",
		"started_at", "completed_at", "total_products", "total_alerts",
	}).AddRow(id, "gumroad", "design", "icons", string(status), startedAt, (*time.Time)(nil), 0, 0)
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func snapshotRowColumns() []string {
	return []string{
		"id", "run_id", "platform", "product_id", "category", "subcategory", "title", "creator", "url",
		"price_usd", "price_original", "currency", "is_pwyw", "rating_avg", "rating_count", "rating_breakdown",
		"sales_count", "revenue_usd", "revenue_confidence", "description", "scraped_at", "hash",
	}
}

func TestPostgres_GetRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	startedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM runs WHERE id").
		WithArgs("run-1").
		WillReturnRows(runRow(mock, "run-1", model.RunStatusRunning, startedAt))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Equal(t, "icons", run.Subcategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT .* FROM runs WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_StartRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "gumroad", "design", "icons", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := st.StartRun(context.Background(), RunScope{Platform: "gumroad", Category: "design", Subcategory: "icons"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun_NotFound(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("complete", pgxmock.AnyArg(), 10, 2, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.CompleteRun(context.Background(), "missing", RunTotals{Products: 10, Alerts: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PreviousRun_None(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT .* FROM runs").
		WithArgs("gumroad", "design", "", "complete", pgxmock.AnyArg(), "run-2").
		WillReturnError(pgx.ErrNoRows)

	prev, err := st.PreviousRun(context.Background(), &model.Run{
		ID: "run-2", Platform: "gumroad", Category: "design",
		StartedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertSnapshots_Copy(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"snapshots"}, snapshotCopyColumns).WillReturnResult(2)

	scrapedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	snaps := []model.ProductSnapshot{
		{RunID: "run-1", Platform: "gumroad", ProductID: "alpha", Category: "design", Title: "A", URL: "https://gumroad.com/l/alpha", ScrapedAt: scrapedAt, Hash: "h1"},
		{RunID: "run-1", Platform: "gumroad", ProductID: "beta", Category: "design", Title: "B", URL: "https://gumroad.com/l/beta", ScrapedAt: scrapedAt, Hash: "h2"},
	}
	require.NoError(t, st.InsertSnapshots(context.Background(), snaps))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertAlerts_Copy(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"alerts"},
		[]string{"type", "platform", "product_id", "run_id", "message", "metadata", "created_at"},
	).WillReturnResult(1)

	alerts := []model.Alert{
		{Type: model.AlertVelocitySpike, Platform: "gumroad", ProductID: "alpha", RunID: "run-1",
			Message: "sales jumped", Metadata: map[string]any{"sales_delta": 60}, CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, st.InsertAlerts(context.Background(), alerts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ComputeDiffs(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	scrapedAt := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	prevScrapedAt := scrapedAt.AddDate(0, 0, -1)

	current := mock.NewRows(snapshotRowColumns()).AddRow(
		int64(2), "run-2", "gumroad", "alpha", "design", "", "Icon Pack", "studio", "https://gumroad.com/l/alpha",
		floatPtr(24.99), "$24.99", "USD", false, floatPtr(4.8), 40, []byte(nil),
		intPtr(150), floatPtr(3186.23), "high", "", scrapedAt, "hash-new",
	)
	previous := mock.NewRows(snapshotRowColumns()).AddRow(
		int64(1), "run-1", "gumroad", "alpha", "design", "", "Icon Pack", "studio", "https://gumroad.com/l/alpha",
		floatPtr(29.99), "$29.99", "USD", false, floatPtr(4.8), 25, []byte(nil),
		intPtr(100), floatPtr(2549.15), "high", "", prevScrapedAt, "hash-old",
	)

	mock.ExpectQuery("SELECT .* FROM snapshots WHERE run_id").
		WithArgs("run-2").
		WillReturnRows(current)
	mock.ExpectQuery("SELECT .* FROM snapshots").
		WithArgs("gumroad", "alpha", "run-2", scrapedAt, int64(2)).
		WillReturnRows(previous)

	diffs, err := st.ComputeDiffs(context.Background(), "run-2")
	require.NoError(t, err)
	require.Len(t, diffs, 1)

	d := diffs[0]
	assert.Equal(t, "run-1", d.PreviousRunID)
	assert.Equal(t, -5.0, *d.PriceDelta)
	assert.Equal(t, 15, *d.RatingCountDelta)
	assert.Equal(t, 50, *d.SalesCountDelta)
	assert.Equal(t, 637.08, *d.RevenueDelta)
	assert.True(t, d.RawSourceChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecentTitles_NewestFirstBeforeLimit(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	rows := mock.NewRows([]string{"title"}).
		AddRow("Pack gamma").
		AddRow("Pack beta")

	// The deduplicated rows must be reordered by snapshot id before the
	// limit applies, so truncation keeps the newest products.
	mock.ExpectQuery(`(?s)SELECT title FROM \(.*DISTINCT ON \(product_id\).*\) latest\s+ORDER BY id DESC\s+LIMIT`).
		WithArgs("gumroad", "design", 2).
		WillReturnRows(rows)

	titles, err := st.RecentTitles(context.Background(), "gumroad", "design", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pack gamma", "Pack beta"}, titles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetOpportunities(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	computedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := mock.NewRows([]string{
		"platform", "product_id", "run_id", "score", "velocity", "copyability", "novelty",
		"price_to_value", "saturation_penalty", "confidence", "reason", "computed_at",
	}).
		AddRow("gumroad", "beta", "run-1", 88.2, 95.0, 60.0, 40.0, 80.0, 0.0, "med", "Score 88/100", computedAt).
		AddRow("gumroad", "alpha", "run-1", 71.5, 80.0, 70.0, 55.0, 95.0, 12.0, "high", "Score 72/100", computedAt)

	mock.ExpectQuery("SELECT .* FROM opportunities WHERE run_id").
		WithArgs("run-1", 10).
		WillReturnRows(rows)

	opps, err := st.GetOpportunities(context.Background(), "run-1", 10)
	require.NoError(t, err)
	require.Len(t, opps, 2)
	assert.Equal(t, "beta", opps[0].ProductID)
	assert.Equal(t, model.ConfidenceHigh, opps[1].Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}
