package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nichewatch/nichewatch/internal/db"
	"github.com/nichewatch/nichewatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgRunColumns = `id, platform, category, subcategory, status, started_at, completed_at, total_products, total_alerts`

	pgSnapshotColumns = `id, run_id, platform, product_id, category, subcategory, title, creator, url,
	price_usd, price_original, currency, is_pwyw, rating_avg, rating_count, rating_breakdown,
	sales_count, revenue_usd, revenue_confidence, description, scraped_at, hash`

	pgGetRunSQL = `SELECT ` + pgRunColumns + ` FROM runs WHERE id = $1`

	pgPreviousRunSQL = `SELECT ` + pgRunColumns + ` FROM runs
	 WHERE platform = $1 AND category = $2 AND subcategory = $3
	   AND status = $4 AND started_at < $5 AND id != $6
	 ORDER BY started_at DESC LIMIT 1`

	pgPreviousSnapshotSQL = `SELECT ` + pgSnapshotColumns + ` FROM snapshots
	 WHERE platform = $1 AND product_id = $2 AND run_id != $3
	   AND (scraped_at < $4 OR (scraped_at = $4 AND id < $5))
	 ORDER BY scraped_at DESC, id DESC LIMIT 1`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations. The
// previous-snapshot lookup runs once per product per analysis pass.
var preparedStatements = map[string]string{
	"get_run":           pgGetRunSQL,
	"previous_run":      pgPreviousRunSQL,
	"previous_snapshot": pgPreviousSnapshotSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	platform       TEXT NOT NULL,
	category       TEXT NOT NULL,
	subcategory    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'running',
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at   TIMESTAMPTZ,
	total_products INTEGER NOT NULL DEFAULT 0,
	total_alerts   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snapshots (
	id                 BIGSERIAL PRIMARY KEY,
	run_id             TEXT NOT NULL REFERENCES runs(id),
	platform           TEXT NOT NULL,
	product_id         TEXT NOT NULL,
	category           TEXT NOT NULL,
	subcategory        TEXT NOT NULL DEFAULT '',
	title              TEXT NOT NULL,
	creator            TEXT NOT NULL DEFAULT '',
	url                TEXT NOT NULL,
	price_usd          DOUBLE PRECISION,
	price_original     TEXT NOT NULL DEFAULT '',
	currency           TEXT NOT NULL DEFAULT '',
	is_pwyw            BOOLEAN NOT NULL DEFAULT false,
	rating_avg         DOUBLE PRECISION,
	rating_count       INTEGER NOT NULL DEFAULT 0,
	rating_breakdown   JSONB,
	sales_count        INTEGER,
	revenue_usd        DOUBLE PRECISION,
	revenue_confidence TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	scraped_at         TIMESTAMPTZ NOT NULL,
	hash               TEXT NOT NULL,
	UNIQUE(platform, product_id, run_id)
);

CREATE TABLE IF NOT EXISTS opportunities (
	platform           TEXT NOT NULL,
	product_id         TEXT NOT NULL,
	run_id             TEXT NOT NULL REFERENCES runs(id),
	score              DOUBLE PRECISION NOT NULL,
	velocity           DOUBLE PRECISION NOT NULL,
	copyability        DOUBLE PRECISION NOT NULL,
	novelty            DOUBLE PRECISION NOT NULL,
	price_to_value     DOUBLE PRECISION NOT NULL,
	saturation_penalty DOUBLE PRECISION NOT NULL,
	confidence         TEXT NOT NULL,
	reason             TEXT NOT NULL,
	computed_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY(platform, product_id, run_id)
);

CREATE TABLE IF NOT EXISTS alerts (
	id         BIGSERIAL PRIMARY KEY,
	type       TEXT NOT NULL,
	platform   TEXT NOT NULL,
	product_id TEXT NOT NULL,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	message    TEXT NOT NULL,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_scope ON runs(platform, category, subcategory, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_snapshots_run_id ON snapshots(run_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_product ON snapshots(platform, product_id, scraped_at DESC);
CREATE INDEX IF NOT EXISTS idx_opportunities_run_id ON opportunities(run_id);
CREATE INDEX IF NOT EXISTS idx_alerts_run_id ON alerts(run_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, scope RunScope) (*model.Run, error) {
	run := &model.Run{
		ID:          uuid.New().String(),
		Platform:    scope.Platform,
		Category:    scope.Category,
		Subcategory: scope.Subcategory,
		Status:      model.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, platform, category, subcategory, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Platform, run.Category, run.Subcategory, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, totals RunTotals) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, completed_at = $2, total_products = $3, total_alerts = $4 WHERE id = $5`,
		string(model.RunStatusComplete), time.Now().UTC(), totals.Products, totals.Alerts, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, completed_at = $2 WHERE id = $3`,
		string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx, pgGetRunSQL, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("run not found: %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + pgRunColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Platform != "" {
		query += fmt.Sprintf(` AND platform = $%d`, argIdx)
		args = append(args, filter.Platform)
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) PreviousRun(ctx context.Context, run *model.Run) (*model.Run, error) {
	prev, err := scanPgRun(s.pool.QueryRow(ctx, pgPreviousRunSQL,
		run.Platform, run.Category, run.Subcategory,
		string(model.RunStatusComplete), run.StartedAt, run.ID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: previous run")
	}
	return prev, nil
}

// snapshotCopyColumns is the COPY column list; id is assigned by the
// sequence on the server side.
var snapshotCopyColumns = []string{
	"run_id", "platform", "product_id", "category", "subcategory", "title", "creator", "url",
	"price_usd", "price_original", "currency", "is_pwyw", "rating_avg", "rating_count",
	"rating_breakdown", "sales_count", "revenue_usd", "revenue_confidence", "description",
	"scraped_at", "hash",
}

func (s *PostgresStore) InsertSnapshots(ctx context.Context, snapshots []model.ProductSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(snapshots))
	for i := range snapshots {
		snap := &snapshots[i]
		var breakdownJSON []byte
		if len(snap.RatingBreakdown) > 0 {
			raw, err := json.Marshal(snap.RatingBreakdown)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal rating breakdown")
			}
			breakdownJSON = raw
		}
		rows = append(rows, []any{
			snap.RunID, snap.Platform, snap.ProductID, snap.Category, snap.Subcategory,
			snap.Title, snap.Creator, snap.URL,
			snap.PriceUSD, snap.PriceOriginal, snap.Currency, snap.IsPWYW,
			snap.RatingAvg, snap.RatingCount, breakdownJSON,
			snap.SalesCount, snap.RevenueUSD, string(snap.RevenueConfidence),
			snap.Description, snap.ScrapedAt, snap.Hash,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "snapshots", snapshotCopyColumns, rows)
	return err
}

func (s *PostgresStore) GetSnapshots(ctx context.Context, runID string) ([]model.ProductSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgSnapshotColumns+` FROM snapshots WHERE run_id = $1 ORDER BY id`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get snapshots")
	}
	defer rows.Close()
	return collectPgSnapshots(rows)
}

func (s *PostgresStore) SnapshotHistory(ctx context.Context, platform, productID string, since time.Time) ([]model.ProductSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgSnapshotColumns+` FROM snapshots
		 WHERE platform = $1 AND product_id = $2 AND scraped_at >= $3
		 ORDER BY scraped_at ASC, id ASC`,
		platform, productID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: snapshot history")
	}
	defer rows.Close()
	return collectPgSnapshots(rows)
}

func (s *PostgresStore) RecentTitles(ctx context.Context, platform, category string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	// Order the deduplicated rows by snapshot id before limiting so the
	// corpus keeps the newest products, matching the SQLite backend.
	rows, err := s.pool.Query(ctx,
		`SELECT title FROM (
			SELECT DISTINCT ON (product_id) id, title FROM snapshots
			WHERE platform = $1 AND category = $2
			ORDER BY product_id, id DESC
		 ) latest
		 ORDER BY id DESC
		 LIMIT $3`,
		platform, category, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent titles")
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "postgres: scan title")
		}
		titles = append(titles, t)
	}
	return titles, eris.Wrap(rows.Err(), "postgres: recent titles iterate")
}

func (s *PostgresStore) ComputeDiffs(ctx context.Context, runID string) ([]model.ProductDiff, error) {
	snaps, err := s.GetSnapshots(ctx, runID)
	if err != nil {
		return nil, err
	}

	diffs := make([]model.ProductDiff, 0, len(snaps))
	for i := range snaps {
		prev, err := s.previousSnapshot(ctx, &snaps[i])
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, NewDiff(snaps[i], prev))
	}
	return diffs, nil
}

func (s *PostgresStore) previousSnapshot(ctx context.Context, snap *model.ProductSnapshot) (*model.ProductSnapshot, error) {
	prev, err := scanPgSnapshot(s.pool.QueryRow(ctx, pgPreviousSnapshotSQL,
		snap.Platform, snap.ProductID, snap.RunID, snap.ScrapedAt, snap.ID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: previous snapshot")
	}
	return prev, nil
}

var opportunityUpsert = db.UpsertConfig{
	Table: "opportunities",
	Columns: []string{
		"platform", "product_id", "run_id", "score", "velocity", "copyability", "novelty",
		"price_to_value", "saturation_penalty", "confidence", "reason", "computed_at",
	},
	ConflictKeys: []string{"platform", "product_id", "run_id"},
}

func (s *PostgresStore) UpsertOpportunities(ctx context.Context, opportunities []model.Opportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(opportunities))
	for _, o := range opportunities {
		rows = append(rows, []any{
			o.Platform, o.ProductID, o.RunID, o.Score, o.Velocity, o.Copyability, o.Novelty,
			o.PriceToValue, o.SaturationPenalty, string(o.Confidence), o.Reason, o.ComputedAt,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, opportunityUpsert, rows)
	return err
}

func (s *PostgresStore) GetOpportunities(ctx context.Context, runID string, limit int) ([]model.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT platform, product_id, run_id, score, velocity, copyability, novelty,
			price_to_value, saturation_penalty, confidence, reason, computed_at
		 FROM opportunities WHERE run_id = $1
		 ORDER BY score DESC, product_id ASC LIMIT $2`,
		runID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get opportunities")
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		var o model.Opportunity
		var confidence string
		err := rows.Scan(&o.Platform, &o.ProductID, &o.RunID, &o.Score, &o.Velocity, &o.Copyability,
			&o.Novelty, &o.PriceToValue, &o.SaturationPenalty, &confidence, &o.Reason, &o.ComputedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		o.Confidence = model.Confidence(confidence)
		opps = append(opps, o)
	}
	return opps, eris.Wrap(rows.Err(), "postgres: get opportunities iterate")
}

func (s *PostgresStore) InsertAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(alerts))
	for _, a := range alerts {
		var metadataJSON []byte
		if len(a.Metadata) > 0 {
			raw, err := json.Marshal(a.Metadata)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal alert metadata")
			}
			metadataJSON = raw
		}
		rows = append(rows, []any{
			string(a.Type), a.Platform, a.ProductID, a.RunID, a.Message, metadataJSON, a.CreatedAt,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "alerts",
		[]string{"type", "platform", "product_id", "run_id", "message", "metadata", "created_at"},
		rows,
	)
	return err
}

func (s *PostgresStore) GetAlerts(ctx context.Context, runID string) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT type, platform, product_id, run_id, message, metadata, created_at
		 FROM alerts WHERE run_id = $1 ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get alerts")
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var alertType string
		var metadataJSON []byte
		err := rows.Scan(&alertType, &a.Platform, &a.ProductID, &a.RunID, &a.Message, &metadataJSON, &a.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert")
		}
		a.Type = model.AlertType(alertType)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal alert metadata")
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, eris.Wrap(rows.Err(), "postgres: get alerts iterate")
}

// scan helpers

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var completedAt *time.Time

	err := row.Scan(&r.ID, &r.Platform, &r.Category, &r.Subcategory, &status,
		&r.StartedAt, &completedAt, &r.TotalProducts, &r.TotalAlerts)
	if err != nil {
		return nil, err
	}

	r.Status = model.RunStatus(status)
	r.CompletedAt = completedAt
	return &r, nil
}

func scanPgSnapshot(row pgx.Row) (*model.ProductSnapshot, error) {
	var snap model.ProductSnapshot
	var breakdownJSON []byte
	var confidence string

	err := row.Scan(&snap.ID, &snap.RunID, &snap.Platform, &snap.ProductID, &snap.Category,
		&snap.Subcategory, &snap.Title, &snap.Creator, &snap.URL,
		&snap.PriceUSD, &snap.PriceOriginal, &snap.Currency, &snap.IsPWYW,
		&snap.RatingAvg, &snap.RatingCount, &breakdownJSON,
		&snap.SalesCount, &snap.RevenueUSD, &confidence, &snap.Description, &snap.ScrapedAt, &snap.Hash)
	if err != nil {
		return nil, err
	}

	if len(breakdownJSON) > 0 {
		if err := json.Unmarshal(breakdownJSON, &snap.RatingBreakdown); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal rating breakdown")
		}
	}
	snap.RevenueConfidence = model.Confidence(confidence)
	return &snap, nil
}

func collectPgSnapshots(rows pgx.Rows) ([]model.ProductSnapshot, error) {
	var snaps []model.ProductSnapshot
	for rows.Next() {
		snap, err := scanPgSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: snapshots iterate")
}
