package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite run archive with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	input TEXT,
	total INTEGER NOT NULL,
	non_divergent INTEGER NOT NULL,
	divergent INTEGER NOT NULL,
	majority INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	document_id TEXT NOT NULL,
	anchor TEXT NOT NULL,
	class TEXT NOT NULL,
	final_label TEXT,
	has_final INTEGER NOT NULL DEFAULT 0,
	contributions TEXT NOT NULL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_records_document ON records(document_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts a run and all of its records in one transaction
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id required", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, started_at, input, total, non_divergent, divergent, majority)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, r.ID, r.StartedAt.UTC().Format(time.RFC3339Nano), r.Input, r.Total, r.NonDivergent, r.Divergent, r.Majority)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	if err := insertRecords(ctx, tx, r.ID, r.Records); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecords(ctx context.Context, tx *sql.Tx, runID string, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO records (run_id, seq, document_id, anchor, class, final_label, has_final, contributions)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		contribJSON, err := json.Marshal(rec.Contributions)
		if err != nil {
			return err
		}
		hasFinal := 0
		if rec.HasFinal {
			hasFinal = 1
		}
		if _, err := stmt.ExecContext(ctx, runID, rec.Seq, rec.DocumentID, rec.Anchor, rec.Class, rec.FinalLabel, hasFinal, string(contribJSON)); err != nil {
			return fmt.Errorf("insert record %d of run %s: %w", rec.Seq, runID, err)
		}
	}
	return nil
}

// GetRun retrieves a run with its records
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, started_at, input, total, non_divergent, divergent, majority
FROM runs
WHERE id = ?;
`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}

	r.Records, err = s.loadRecords(ctx, id)
	if err != nil {
		return store.Run{}, err
	}
	return r, nil
}

// ListRuns returns the newest runs first. ULIDs sort by creation time.
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, input, total, non_divergent, divergent, majority
FROM runs
ORDER BY id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (store.Run, error) {
	var (
		r       store.Run
		started string
		input   sql.NullString
	)
	if err := sc.Scan(&r.ID, &started, &input, &r.Total, &r.NonDivergent, &r.Divergent, &r.Majority); err != nil {
		return store.Run{}, err
	}
	r.Input = input.String
	if parsed, err := time.Parse(time.RFC3339Nano, started); err == nil {
		r.StartedAt = parsed
	}
	return r, nil
}

func (s *sqliteStore) loadRecords(ctx context.Context, runID string) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, document_id, anchor, class, final_label, has_final, contributions
FROM records
WHERE run_id = ?
ORDER BY seq;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		var (
			rec         store.Record
			finalLabel  sql.NullString
			hasFinal    int
			contribJSON string
		)
		if err := rows.Scan(&rec.Seq, &rec.DocumentID, &rec.Anchor, &rec.Class, &finalLabel, &hasFinal, &contribJSON); err != nil {
			return nil, err
		}
		rec.FinalLabel = finalLabel.String
		rec.HasFinal = hasFinal != 0
		if err := json.Unmarshal([]byte(contribJSON), &rec.Contributions); err != nil {
			return nil, fmt.Errorf("decode contributions of record %d: %w", rec.Seq, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
