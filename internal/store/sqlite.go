package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nichewatch/nichewatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	platform       TEXT NOT NULL,
	category       TEXT NOT NULL,
	subcategory    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'running',
	started_at     DATETIME NOT NULL,
	completed_at   DATETIME,
	total_products INTEGER NOT NULL DEFAULT 0,
	total_alerts   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snapshots (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id             TEXT NOT NULL REFERENCES runs(id),
	platform           TEXT NOT NULL,
	product_id         TEXT NOT NULL,
	category           TEXT NOT NULL,
	subcategory        TEXT NOT NULL DEFAULT '',
	title              TEXT NOT NULL,
	creator            TEXT NOT NULL DEFAULT '',
	url                TEXT NOT NULL,
	price_usd          REAL,
	price_original     TEXT NOT NULL DEFAULT '',
	currency           TEXT NOT NULL DEFAULT '',
	is_pwyw            INTEGER NOT NULL DEFAULT 0,
	rating_avg         REAL,
	rating_count       INTEGER NOT NULL DEFAULT 0,
	rating_breakdown   TEXT,
	sales_count        INTEGER,
	revenue_usd        REAL,
	revenue_confidence TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	scraped_at         DATETIME NOT NULL,
	hash               TEXT NOT NULL,
	UNIQUE(platform, product_id, run_id)
);

CREATE TABLE IF NOT EXISTS opportunities (
	platform           TEXT NOT NULL,
	product_id         TEXT NOT NULL,
	run_id             TEXT NOT NULL REFERENCES runs(id),
	score              REAL NOT NULL,
	velocity           REAL NOT NULL,
	copyability        REAL NOT NULL,
	novelty            REAL NOT NULL,
	price_to_value     REAL NOT NULL,
	saturation_penalty REAL NOT NULL,
	confidence         TEXT NOT NULL,
	reason             TEXT NOT NULL,
	computed_at        DATETIME NOT NULL,
	PRIMARY KEY(platform, product_id, run_id)
);

CREATE TABLE IF NOT EXISTS alerts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	type       TEXT NOT NULL,
	platform   TEXT NOT NULL,
	product_id TEXT NOT NULL,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	message    TEXT NOT NULL,
	metadata   TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_scope ON runs(platform, category, subcategory, started_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_snapshots_run_id ON snapshots(run_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_product ON snapshots(platform, product_id, scraped_at);
CREATE INDEX IF NOT EXISTS idx_opportunities_run_id ON opportunities(run_id);
CREATE INDEX IF NOT EXISTS idx_alerts_run_id ON alerts(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context, scope RunScope) (*model.Run, error) {
	run := &model.Run{
		ID:          uuid.New().String(),
		Platform:    scope.Platform,
		Category:    scope.Category,
		Subcategory: scope.Subcategory,
		Status:      model.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, platform, category, subcategory, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Platform, run.Category, run.Subcategory, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, totals RunTotals) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, total_products = ?, total_alerts = ? WHERE id = ?`,
		string(model.RunStatusComplete), time.Now().UTC(), totals.Products, totals.Alerts, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const sqliteRunColumns = `id, platform, category, subcategory, status, started_at, completed_at, total_products, total_alerts`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`, runID,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, filter.Platform)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) PreviousRun(ctx context.Context, run *model.Run) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs
		 WHERE platform = ? AND category = ? AND subcategory = ?
		   AND status = ? AND started_at < ? AND id != ?
		 ORDER BY started_at DESC LIMIT 1`,
		run.Platform, run.Category, run.Subcategory,
		string(model.RunStatusComplete), run.StartedAt, run.ID,
	)
	prev, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return prev, err
}

const sqliteSnapshotColumns = `id, run_id, platform, product_id, category, subcategory, title, creator, url,
	price_usd, price_original, currency, is_pwyw, rating_avg, rating_count, rating_breakdown,
	sales_count, revenue_usd, revenue_confidence, description, scraped_at, hash`

func (s *SQLiteStore) InsertSnapshots(ctx context.Context, snapshots []model.ProductSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin snapshots tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshots (run_id, platform, product_id, category, subcategory, title, creator, url,
			price_usd, price_original, currency, is_pwyw, rating_avg, rating_count, rating_breakdown,
			sales_count, revenue_usd, revenue_confidence, description, scraped_at, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare snapshot insert")
	}
	defer stmt.Close()

	for i := range snapshots {
		snap := &snapshots[i]
		breakdownJSON, err := marshalBreakdown(snap.RatingBreakdown)
		if err != nil {
			return err
		}
		res, err := stmt.ExecContext(ctx,
			snap.RunID, snap.Platform, snap.ProductID, snap.Category, snap.Subcategory,
			snap.Title, snap.Creator, snap.URL,
			snap.PriceUSD, snap.PriceOriginal, snap.Currency, snap.IsPWYW,
			snap.RatingAvg, snap.RatingCount, breakdownJSON,
			snap.SalesCount, snap.RevenueUSD, string(snap.RevenueConfidence),
			snap.Description, snap.ScrapedAt, snap.Hash,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert snapshot %s/%s", snap.Platform, snap.ProductID)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return eris.Wrap(err, "sqlite: snapshot insert id")
		}
		snap.ID = id
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit snapshots")
}

func (s *SQLiteStore) GetSnapshots(ctx context.Context, runID string) ([]model.ProductSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSnapshotColumns+` FROM snapshots WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get snapshots")
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

func (s *SQLiteStore) SnapshotHistory(ctx context.Context, platform, productID string, since time.Time) ([]model.ProductSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSnapshotColumns+` FROM snapshots
		 WHERE platform = ? AND product_id = ? AND scraped_at >= ?
		 ORDER BY scraped_at ASC, id ASC`,
		platform, productID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: snapshot history")
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

func (s *SQLiteStore) RecentTitles(ctx context.Context, platform, category string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT title FROM snapshots
		 WHERE id IN (
			SELECT MAX(id) FROM snapshots WHERE platform = ? AND category = ? GROUP BY product_id
		 )
		 ORDER BY id DESC LIMIT ?`,
		platform, category, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent titles")
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan title")
		}
		titles = append(titles, t)
	}
	return titles, eris.Wrap(rows.Err(), "sqlite: recent titles iterate")
}

func (s *SQLiteStore) ComputeDiffs(ctx context.Context, runID string) ([]model.ProductDiff, error) {
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

// previousSnapshot finds the newest earlier observation of the same product
// from a different run. Ties on scraped_at fall back to insertion order.
func (s *SQLiteStore) previousSnapshot(ctx context.Context, snap *model.ProductSnapshot) (*model.ProductSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSnapshotColumns+` FROM snapshots
		 WHERE platform = ? AND product_id = ? AND run_id != ?
		   AND (scraped_at < ? OR (scraped_at = ? AND id < ?))
		 ORDER BY scraped_at DESC, id DESC LIMIT 1`,
		snap.Platform, snap.ProductID, snap.RunID,
		snap.ScrapedAt, snap.ScrapedAt, snap.ID,
	)
	prev, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return prev, err
}

func (s *SQLiteStore) UpsertOpportunities(ctx context.Context, opportunities []model.Opportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin opportunities tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO opportunities (platform, product_id, run_id, score, velocity, copyability, novelty,
			price_to_value, saturation_penalty, confidence, reason, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(platform, product_id, run_id) DO UPDATE SET
			score = excluded.score, velocity = excluded.velocity, copyability = excluded.copyability,
			novelty = excluded.novelty, price_to_value = excluded.price_to_value,
			saturation_penalty = excluded.saturation_penalty, confidence = excluded.confidence,
			reason = excluded.reason, computed_at = excluded.computed_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare opportunity upsert")
	}
	defer stmt.Close()

	for _, o := range opportunities {
		_, err := stmt.ExecContext(ctx,
			o.Platform, o.ProductID, o.RunID, o.Score, o.Velocity, o.Copyability, o.Novelty,
			o.PriceToValue, o.SaturationPenalty, string(o.Confidence), o.Reason, o.ComputedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert opportunity %s/%s", o.Platform, o.ProductID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit opportunities")
}

func (s *SQLiteStore) GetOpportunities(ctx context.Context, runID string, limit int) ([]model.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, product_id, run_id, score, velocity, copyability, novelty,
			price_to_value, saturation_penalty, confidence, reason, computed_at
		 FROM opportunities WHERE run_id = ?
		 ORDER BY score DESC, product_id ASC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get opportunities")
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		var o model.Opportunity
		var confidence string
		err := rows.Scan(&o.Platform, &o.ProductID, &o.RunID, &o.Score, &o.Velocity, &o.Copyability,
			&o.Novelty, &o.PriceToValue, &o.SaturationPenalty, &confidence, &o.Reason, &o.ComputedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opportunity")
		}
		o.Confidence = model.Confidence(confidence)
		opps = append(opps, o)
	}
	return opps, eris.Wrap(rows.Err(), "sqlite: get opportunities iterate")
}

func (s *SQLiteStore) InsertAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin alerts tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO alerts (type, platform, product_id, run_id, message, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare alert insert")
	}
	defer stmt.Close()

	for _, a := range alerts {
		metadataJSON, err := marshalMetadata(a.Metadata)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			string(a.Type), a.Platform, a.ProductID, a.RunID, a.Message, metadataJSON, a.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert alert %s/%s", a.Platform, a.ProductID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit alerts")
}

func (s *SQLiteStore) GetAlerts(ctx context.Context, runID string) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, platform, product_id, run_id, message, metadata, created_at
		 FROM alerts WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get alerts")
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var alertType string
		var metadataJSON sql.NullString
		err := rows.Scan(&alertType, &a.Platform, &a.ProductID, &a.RunID, &a.Message, &metadataJSON, &a.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alert")
		}
		a.Type = model.AlertType(alertType)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &a.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal alert metadata")
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, eris.Wrap(rows.Err(), "sqlite: get alerts iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Platform, &r.Category, &r.Subcategory, &status,
		&r.StartedAt, &completedAt, &r.TotalProducts, &r.TotalAlerts)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = model.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

func scanSnapshot(row scannable) (*model.ProductSnapshot, error) {
	var snap model.ProductSnapshot
	var priceUSD, ratingAvg, revenueUSD sql.NullFloat64
	var salesCount sql.NullInt64
	var breakdownJSON sql.NullString
	var confidence string

	err := row.Scan(&snap.ID, &snap.RunID, &snap.Platform, &snap.ProductID, &snap.Category,
		&snap.Subcategory, &snap.Title, &snap.Creator, &snap.URL,
		&priceUSD, &snap.PriceOriginal, &snap.Currency, &snap.IsPWYW,
		&ratingAvg, &snap.RatingCount, &breakdownJSON,
		&salesCount, &revenueUSD, &confidence, &snap.Description, &snap.ScrapedAt, &snap.Hash)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan snapshot")
	}

	if priceUSD.Valid {
		snap.PriceUSD = &priceUSD.Float64
	}
	if ratingAvg.Valid {
		snap.RatingAvg = &ratingAvg.Float64
	}
	if revenueUSD.Valid {
		snap.RevenueUSD = &revenueUSD.Float64
	}
	if salesCount.Valid {
		n := int(salesCount.Int64)
		snap.SalesCount = &n
	}
	if breakdownJSON.Valid && breakdownJSON.String != "" {
		if err := json.Unmarshal([]byte(breakdownJSON.String), &snap.RatingBreakdown); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal rating breakdown")
		}
	}
	snap.RevenueConfidence = model.Confidence(confidence)
	return &snap, nil
}

func collectSnapshots(rows *sql.Rows) ([]model.ProductSnapshot, error) {
	var snaps []model.ProductSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: snapshots iterate")
}

func marshalBreakdown(breakdown map[string]float64) (any, error) {
	if len(breakdown) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal rating breakdown")
	}
	return string(raw), nil
}

func marshalMetadata(metadata map[string]any) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal alert metadata")
	}
	return string(raw), nil
}
