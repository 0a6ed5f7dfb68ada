// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package results persists diagnosed uploads in SQLite so they can be
// listed, inspected and exported after the request that produced them.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

const defaultListLimit = 20

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the results database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path, creating its directory and
// schema when needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating results directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL,
			total_rows INTEGER NOT NULL,
			processed_rows INTEGER NOT NULL,
			advanced TEXT,
			attribution TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS diagnoses (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			diagnosis TEXT NOT NULL,
			confidence REAL NOT NULL,
			secondary_diagnosis TEXT,
			status TEXT NOT NULL,
			probabilities TEXT,
			PRIMARY KEY (run_id, row_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_diagnoses_status ON diagnoses(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save inserts run. An empty ID is replaced by a new UUID and a zero
// CreatedAt by the current time; both are written back to run.
func (s *Store) Save(ctx context.Context, run *types.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}

	advanced, err := nullableJSON(run.Advanced)
	if err != nil {
		return fmt.Errorf("encoding advanced results: %w", err)
	}
	attribution, err := nullableJSON(run.Attribution)
	if err != nil {
		return fmt.Errorf("encoding attribution: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, created_at, total_rows, processed_rows, advanced, attribution)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.CreatedAt.UTC().Format(timeLayout),
		run.TotalRows, run.ProcessedRows, advanced, attribution,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO diagnoses (run_id, row_index, diagnosis, confidence, secondary_diagnosis, status, probabilities)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range run.Diagnoses {
		probs, _ := json.Marshal(d.Probabilities)
		_, err := stmt.ExecContext(ctx,
			run.ID, d.RowIndex, d.Diagnosis, d.Confidence, d.SecondaryDiagnosis, d.Status, string(probs))
		if err != nil {
			return fmt.Errorf("inserting diagnosis for row %d: %w", d.RowIndex, err)
		}
	}

	return tx.Commit()
}

// Get loads the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*types.Run, error) {
	var (
		run                   types.Run
		created               string
		advanced, attribution sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, created_at, total_rows, processed_rows, advanced, attribution
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Source, &created, &run.TotalRows, &run.ProcessedRows, &advanced, &attribution)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}
	if run.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parsing created_at of run %s: %w", id, err)
	}
	if advanced.Valid {
		run.Advanced = &types.BatchResult{}
		if err := json.Unmarshal([]byte(advanced.String), run.Advanced); err != nil {
			return nil, fmt.Errorf("decoding advanced results of run %s: %w", id, err)
		}
	}
	if attribution.Valid {
		run.Attribution = &types.AttributionResult{}
		if err := json.Unmarshal([]byte(attribution.String), run.Attribution); err != nil {
			return nil, fmt.Errorf("decoding attribution of run %s: %w", id, err)
		}
	}

	run.Diagnoses, err = s.diagnoses(ctx, id)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) diagnoses(ctx context.Context, runID string) ([]types.Diagnosis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_index, diagnosis, confidence, secondary_diagnosis, status, probabilities
		 FROM diagnoses WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying diagnoses: %w", err)
	}
	defer rows.Close()

	out := []types.Diagnosis{}
	for rows.Next() {
		var (
			d         types.Diagnosis
			secondary sql.NullString
			probs     sql.NullString
		)
		if err := rows.Scan(&d.RowIndex, &d.Diagnosis, &d.Confidence, &secondary, &d.Status, &probs); err != nil {
			return nil, fmt.Errorf("scanning diagnosis: %w", err)
		}
		d.SecondaryDiagnosis = secondary.String
		if probs.Valid {
			_ = json.Unmarshal([]byte(probs.String), &d.Probabilities)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of runs returned (default 20).
	Limit int
	// FaultyOnly keeps runs with at least one faulty diagnosis.
	FaultyOnly bool
	// Since keeps runs created at or after this time.
	Since time.Time
}

// List returns run summaries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.RunSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT r.id, r.source, r.created_at, r.total_rows, r.processed_rows,
			COALESCE(SUM(CASE WHEN d.status != ? THEN 1 ELSE 0 END), 0) AS faulty
		 FROM runs r LEFT JOIN diagnoses d ON d.run_id = r.id`
	args := []any{types.StatusHealthy}
	if !opts.Since.IsZero() {
		query += ` WHERE r.created_at >= ?`
		args = append(args, opts.Since.UTC().Format(timeLayout))
	}
	query += ` GROUP BY r.id`
	if opts.FaultyOnly {
		query += ` HAVING faulty > 0`
	}
	query += ` ORDER BY r.created_at DESC, r.id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	out := []types.RunSummary{}
	for rows.Next() {
		var (
			sum     types.RunSummary
			created string
		)
		if err := rows.Scan(&sum.ID, &sum.Source, &created, &sum.TotalRows, &sum.ProcessedRows, &sum.FaultyRows); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parsing created_at of run %s: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a run and its diagnoses.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func nullableJSON(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case *types.BatchResult:
		if x == nil {
			return sql.NullString{}, nil
		}
	case *types.AttributionResult:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
