// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package runstore keeps a SQLite ledger of analysis runs.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vidlens/internal/persistence/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	video_name TEXT NOT NULL,
	record_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	media_path TEXT NOT NULL DEFAULT '',
	report_path TEXT NOT NULL DEFAULT '',
	delivery TEXT NOT NULL DEFAULT '',
	created_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL,
	finished_at_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at_ms);
`

// ErrNotFound is returned by Get for unknown run ids.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one ledger row.
type Run struct {
	ID         string     `json:"id"`
	VideoName  string     `json:"videoName"`
	RecordID   string     `json:"recordId"`
	Stage      string     `json:"stage"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	MediaPath  string     `json:"mediaPath,omitempty"`
	ReportPath string     `json:"reportPath,omitempty"`
	Delivery   string     `json:"delivery,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Result is the terminal state written by Finish.
type Result struct {
	Status     Status
	Error      string
	MediaPath  string
	ReportPath string
	Delivery   string
}

// Store is the SQLite-backed ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and migrates) the ledger at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, schemaVersion, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runstore: migration failed: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Create inserts a new run in the accepted state.
func (s *Store) Create(ctx context.Context, id, videoName, recordID string) error {
	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, video_name, record_id, stage, status, created_at_ms, updated_at_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, videoName, recordID, "accepted", string(StatusAccepted), now, now)
	if err != nil {
		return fmt.Errorf("runstore: create %s: %w", id, err)
	}
	return nil
}

// SetStage marks the run as running in stage.
func (s *Store) SetStage(ctx context.Context, id, stage string) error {
	return s.update(ctx, id,
		`UPDATE runs SET stage = ?, status = ?, updated_at_ms = ? WHERE id = ? AND finished_at_ms IS NULL`,
		stage, string(StatusRunning), s.now().UnixMilli(), id)
}

// Finish records the terminal state. A finished run is never rewritten.
func (s *Store) Finish(ctx context.Context, id string, res Result) error {
	now := s.now().UnixMilli()
	return s.update(ctx, id,
		`UPDATE runs SET stage = 'done', status = ?, error = ?, media_path = ?, report_path = ?, delivery = ?, updated_at_ms = ?, finished_at_ms = ?
		 WHERE id = ? AND finished_at_ms IS NULL`,
		string(res.Status), res.Error, res.MediaPath, res.ReportPath, res.Delivery, now, now, id)
}

func (s *Store) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("runstore: update %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("runstore: update %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get returns the run with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	var (
		r                Run
		status           string
		created, updated int64
		finished         sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, video_name, record_id, stage, status, error, media_path, report_path, delivery, created_at_ms, updated_at_ms, finished_at_ms
		 FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.VideoName, &r.RecordID, &r.Stage, &status, &r.Error, &r.MediaPath, &r.ReportPath, &r.Delivery, &created, &updated, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("runstore: get %s: %w", id, err)
	}
	r.Status = Status(status)
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.UpdatedAt = time.UnixMilli(updated).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		r.FinishedAt = &t
	}
	return r, nil
}

// Verify runs a quick integrity check.
func (s *Store) Verify(ctx context.Context) ([]string, error) {
	return sqlite.VerifyIntegrity(ctx, s.db, "quick")
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
