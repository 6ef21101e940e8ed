// Package audit keeps a SQLite history of cleaning runs and the cell-level
// changes each run made.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/rawready/internal/clean"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID     string `db:"id" json:"id"`
	Source string `db:"source" json:"source"`
	// StartedAt is unix milliseconds.
	StartedAt        int64  `db:"started_at" json:"started_at"`
	DurationMS       int64  `db:"duration_ms" json:"duration_ms"`
	Steps            string `db:"steps" json:"steps"`
	Options          string `db:"options" json:"options"`
	RowsBefore       int    `db:"rows_before" json:"rows_before"`
	NullsBefore      int    `db:"nulls_before" json:"nulls_before"`
	DuplicatesBefore int    `db:"duplicates_before" json:"duplicates_before"`
	RowsAfter        int    `db:"rows_after" json:"rows_after"`
	NullsAfter       int    `db:"nulls_after" json:"nulls_after"`
	DuplicatesAfter  int    `db:"duplicates_after" json:"duplicates_after"`
	Changes          int    `db:"changes" json:"changes"`
}

// Started returns StartedAt as a time.
func (r RunRecord) Started() time.Time { return time.UnixMilli(r.StartedAt).UTC() }

// ChangeRecord is one row of the changes table.
type ChangeRecord struct {
	ID     int64  `db:"id" json:"id"`
	RunID  string `db:"run_id" json:"run_id"`
	Row    int    `db:"row_index" json:"row"`
	Column string `db:"column_name" json:"column"`
	Op     string `db:"op" json:"op"`
	Old    string `db:"old_value" json:"old"`
	New    string `db:"new_value" json:"new"`
	Reason string `db:"reason" json:"reason"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL DEFAULT '',
	started_at        INTEGER NOT NULL,
	duration_ms       INTEGER NOT NULL,
	steps             TEXT NOT NULL,
	options           TEXT NOT NULL,
	rows_before       INTEGER NOT NULL,
	nulls_before      INTEGER NOT NULL,
	duplicates_before INTEGER NOT NULL,
	rows_after        INTEGER NOT NULL,
	nulls_after       INTEGER NOT NULL,
	duplicates_after  INTEGER NOT NULL,
	changes           INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS changes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	row_index   INTEGER NOT NULL,
	column_name TEXT NOT NULL DEFAULT '',
	op          TEXT NOT NULL,
	old_value   TEXT NOT NULL DEFAULT '',
	new_value   TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS changes_run_id ON changes(run_id);
`

// insertBatch bounds rows per multi-row INSERT to stay under SQLite's
// bound-parameter limit.
const insertBatch = 500

// Store is a SQLite-backed run history.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	logger.Debug("audit store ready", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// RecordFromResult flattens a run result into a RunRecord.
func RecordFromResult(source string, res *clean.Result) RunRecord {
	opts, _ := json.Marshal(res.Options)
	return RunRecord{
		ID:               res.RunID,
		Source:           source,
		StartedAt:        res.StartedAt.UnixMilli(),
		DurationMS:       res.Duration.Milliseconds(),
		Steps:            strings.Join(res.Steps, ","),
		Options:          string(opts),
		RowsBefore:       res.Before.Rows,
		NullsBefore:      res.Before.Nulls,
		DuplicatesBefore: res.Before.Duplicates,
		RowsAfter:        res.After.Rows,
		NullsAfter:       res.After.Nulls,
		DuplicatesAfter:  res.After.Duplicates,
		Changes:          len(res.Changes),
	}
}

// RecordResult stores a finished run and all of its changes.
func (s *Store) RecordResult(ctx context.Context, source string, res *clean.Result) error {
	return s.RecordRun(ctx, RecordFromResult(source, res), res.Changes)
}

// RecordRun inserts the run and its changes in one transaction.
func (s *Store) RecordRun(ctx context.Context, run RunRecord, changes []clean.Change) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback audit transaction", zap.Error(rbErr), zap.NamedError("cause", err))
			}
		}
	}()

	if _, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, source, started_at, duration_ms, steps, options,
			rows_before, nulls_before, duplicates_before,
			rows_after, nulls_after, duplicates_after, changes)
		VALUES (:id, :source, :started_at, :duration_ms, :steps, :options,
			:rows_before, :nulls_before, :duplicates_before,
			:rows_after, :nulls_after, :duplicates_after, :changes)`, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for start := 0; start < len(changes); start += insertBatch {
		end := min(start+insertBatch, len(changes))
		batch := make([]ChangeRecord, 0, end-start)
		for _, c := range changes[start:end] {
			batch = append(batch, ChangeRecord{
				RunID: run.ID, Row: c.Row, Column: c.Column, Op: string(c.Op),
				Old: c.Old, New: c.New, Reason: c.Reason,
			})
		}
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO changes (run_id, row_index, column_name, op, old_value, new_value, reason)
			VALUES (:run_id, :row_index, :column_name, :op, :old_value, :new_value, :reason)`, batch); err != nil {
			return fmt.Errorf("insert changes: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("recorded cleaning run", zap.String("run_id", run.ID), zap.Int("changes", len(changes)))
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	q := `SELECT * FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var runs []RunRecord
	if err := s.db.SelectContext(ctx, &runs, q, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Run returns a single run by id.
func (s *Store) Run(ctx context.Context, id string) (RunRecord, error) {
	var r RunRecord
	err := s.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return r, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// Changes returns the changes recorded for a run, in the order they were made.
func (s *Store) Changes(ctx context.Context, runID string) ([]ChangeRecord, error) {
	if _, err := s.Run(ctx, runID); err != nil {
		return nil, err
	}
	var out []ChangeRecord
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM changes WHERE run_id = ? ORDER BY id`, runID); err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	return out, nil
}
