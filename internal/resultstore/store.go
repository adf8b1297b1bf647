// Package resultstore keeps evaluation scores of every run in a SQLite
// database so that runs over many subject pairs can be queried together.
package resultstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ocommowi/regeval/internal/evaluate"
	"github.com/ocommowi/regeval/internal/subject"
)

//go:embed schema.sql
var schema string

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Store is a score database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply results schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// BeginRun registers a run for pair.
func (s *Store) BeginRun(ctx context.Context, runID string, pair subject.Pair) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, ref, mov) VALUES (?, ?, ?)",
		runID, pair.Ref.ID, pair.Mov.ID)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", runID, err)
	}
	return nil
}

// Insert stores the records of one run in a single transaction. Invalid
// records are stored with a NULL value.
func (s *Store) Insert(ctx context.Context, runID string, pair subject.Pair, records []evaluate.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scores
		(run_id, ref, mov, strategy, target, region, metric, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var value sql.NullFloat64
		if r.Valid {
			value = sql.NullFloat64{Float64: r.Value, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, pair.Ref.ID, pair.Mov.ID,
			r.Strategy, r.Target, r.Region, string(r.Metric), value); err != nil {
			return fmt.Errorf("failed to insert score %s/%s: %w", r.Strategy, r.Target, err)
		}
	}
	return tx.Commit()
}

// Scores returns the stored records of a run in insertion order.
func (s *Store) Scores(ctx context.Context, runID string) ([]evaluate.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT strategy, target, region, metric, value FROM scores
		WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var out []evaluate.Record
	for rows.Next() {
		var (
			r      evaluate.Record
			metric string
			value  sql.NullFloat64
		)
		if err := rows.Scan(&r.Strategy, &r.Target, &r.Region, &metric, &value); err != nil {
			return nil, err
		}
		r.Metric = evaluate.Metric(metric)
		r.Value, r.Valid = value.Float64, value.Valid
		out = append(out, r)
	}
	return out, rows.Err()
}
