package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/catalog-updater/internal/model"
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
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	categories TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS page_cache (
	url          TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	text         TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	fetched_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS datasets (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	dataset_name TEXT NOT NULL,
	doi          TEXT NOT NULL,
	url          TEXT NOT NULL,
	record       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_page_cache_fetched_at ON page_cache(fetched_at);
CREATE INDEX IF NOT EXISTS idx_datasets_run_id ON datasets(run_id);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, categories []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	catJSON, err := json.Marshal(categories)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal categories")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, categories, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(catJSON), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:         id,
		Status:     model.RunStatusRunning,
		Categories: categories,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		reason, string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, categories, status, summary, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, categories, status, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC`

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
	defer rows.Close() //nolint:errcheck

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

func (s *SQLiteStore) GetPage(ctx context.Context, url string, maxAge time.Duration) (*model.FetchedPage, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	var p model.FetchedPage
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT url, title, text, content_type, source, fetched_at FROM page_cache
		 WHERE url = ? AND fetched_at >= ?`,
		url, cutoff,
	).Scan(&p.URL, &p.Title, &p.Text, &p.ContentType, &p.Source, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get page")
	}
	p.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return &p, nil
}

func (s *SQLiteStore) PutPage(ctx context.Context, page *model.FetchedPage) error {
	fetchedAt := page.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (url, title, text, content_type, source, fetched_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET title = excluded.title, text = excluded.text,
		 content_type = excluded.content_type, source = excluded.source, fetched_at = excluded.fetched_at`,
		page.URL, page.Title, page.Text, page.ContentType, page.Source, fetchedAt.Unix(),
	)
	return eris.Wrap(err, "sqlite: put page")
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context, maxAge time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM page_cache WHERE fetched_at < ?`,
		time.Now().Add(-maxAge).Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) DatasetIdentities(ctx context.Context) ([]Identity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dataset_name, doi, url FROM datasets`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dataset identities")
	}
	defer rows.Close() //nolint:errcheck

	var out []Identity
	for rows.Next() {
		var id Identity
		if err := rows.Scan(&id.Name, &id.DOI, &id.URL); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identity")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: dataset identities iterate")
}

func (s *SQLiteStore) InsertDatasets(ctx context.Context, runID string, records []model.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows, err := datasetRows(runID, records)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO datasets (id, run_id, category, dataset_name, doi, url, record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare dataset insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert dataset")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit datasets")
	}
	return len(rows), nil
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM datasets ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dataset")
		}
		var r model.Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dataset")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list datasets iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var catJSON string
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &catJSON, &r.Status, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := decodeRun(&r, []byte(catJSON), nullBytes(summaryJSON)); err != nil {
		return nil, err
	}
	return &r, nil
}

func nullBytes(ns sql.NullString) []byte {
	if !ns.Valid {
		return nil
	}
	return []byte(ns.String)
}

// decodeRun fills the JSON-encoded columns of r.
func decodeRun(r *model.Run, categories, summary []byte) error {
	if err := json.Unmarshal(categories, &r.Categories); err != nil {
		return eris.Wrap(err, "store: unmarshal categories")
	}
	if len(summary) > 0 {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summary, r.Summary); err != nil {
			return eris.Wrap(err, "store: unmarshal summary")
		}
	}
	return nil
}

// datasetRows converts records into datasets table rows in datasetColumns
// order.
func datasetRows(runID string, records []model.Record) ([][]any, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal dataset")
		}
		rows = append(rows, []any{
			uuid.New().String(), runID, r.Category,
			r.Name(), r.DOI(), r.URL(), string(raw), now,
		})
	}
	return rows, nil
}
