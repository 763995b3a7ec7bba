// Package journal persists an audit trail of link rewrites in SQLite.
// Each `relink run` gets a run row; every link written back to the
// destination gets a rewrite row under it.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lherron/relink/internal/report"
)

// Run is one journaled relink run
type Run struct {
	ID         string         `json:"id" yaml:"id"`
	StartedAt  string         `json:"started_at" yaml:"started_at"`
	FinishedAt *string        `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Notebook   string         `json:"notebook,omitempty" yaml:"notebook,omitempty"`
	DryRun     bool           `json:"dry_run" yaml:"dry_run"`
	Summary    report.Summary `json:"summary" yaml:"summary"`
}

// Entry is one rewritten link
type Entry struct {
	ID         int64  `json:"id" yaml:"id"`
	RunID      string `json:"run_id" yaml:"run_id"`
	NoteID     string `json:"note_id" yaml:"note_id"`
	NoteTitle  string `json:"note_title" yaml:"note_title"`
	GUID       string `json:"legacy_guid" yaml:"legacy_guid"`
	DestID     string `json:"dest_id" yaml:"dest_id"`
	OldURI     string `json:"old_uri" yaml:"old_uri"`
	NewURI     string `json:"new_uri" yaml:"new_uri"`
	RecordedAt string `json:"recorded_at" yaml:"recorded_at"`
}

// Journal reads and writes runs and rewrites
type Journal struct {
	db *DB
}

// New creates a journal over an opened, migrated database
func New(db *DB) *Journal {
	return &Journal{db: db}
}

// StartRun inserts a run row and returns its id
func (j *Journal) StartRun(ctx context.Context, notebook string, dryRun bool) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, notebook, dry_run) VALUES (?, ?, ?)`,
		id, notebook, dryRun,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counters of a run
func (j *Journal) FinishRun(ctx context.Context, runID string, s report.Summary) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = strftime('%Y-%m-%dT%H:%M:%SZ','now'),
			links_seen = ?, links_updated = ?, links_failed = ?, links_malformed = ?,
			write_failures = ?, notes_updated = ?, notes_skipped = ?
		WHERE id = ?
	`, s.LinksSeen, s.LinksUpdated, s.LinksFailed, s.LinksMalformed,
		s.WriteFailures, s.NotesUpdated, s.NotesSkipped, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// RecordRewrites stores the rewrites of one note in a single transaction
func (j *Journal) RecordRewrites(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rewrites (run_id, note_id, note_title, legacy_guid, dest_id, old_uri, new_uri)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rewrite insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.RunID, e.NoteID, e.NoteTitle, e.GUID, e.DestID, e.OldURI, e.NewURI); err != nil {
			return fmt.Errorf("failed to record rewrite for note %s: %w", e.NoteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rewrites: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, COALESCE(notebook, ''), dry_run,
		       links_seen, links_updated, links_failed, links_malformed,
		       write_failures, notes_updated, notes_skipped
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Notebook, &r.DryRun,
			&r.Summary.LinksSeen, &r.Summary.LinksUpdated, &r.Summary.LinksFailed, &r.Summary.LinksMalformed,
			&r.Summary.WriteFailures, &r.Summary.NotesUpdated, &r.Summary.NotesSkipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.String
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ListRewrites returns the rewrites of a run, or of all runs when runID is empty
func (j *Journal) ListRewrites(ctx context.Context, runID string) ([]Entry, error) {
	query := `
		SELECT id, run_id, note_id, note_title, legacy_guid, dest_id, old_uri, new_uri, recorded_at
		FROM rewrites
	`
	var args []any
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY id"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewrites: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RunID, &e.NoteID, &e.NoteTitle, &e.GUID, &e.DestID, &e.OldURI, &e.NewURI, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rewrite: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rewrites: %w", err)
	}
	return entries, nil
}
