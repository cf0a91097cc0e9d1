// Package db keeps a local history of runs and their checks.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neboloop/agencycheck/internal/check"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// Run kinds
const (
	KindScenarios = "run"
	KindSeed      = "seed"
	KindVerify    = "verify"
	KindCleanup   = "cleanup"
)

// Run is one recorded invocation.
type Run struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Suite        string    `json:"suite,omitempty"`
	BaseURL      string    `json:"base_url,omitempty"`
	Driver       string    `json:"driver,omitempty"`
	ArtifactsDir string    `json:"artifacts_dir,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Passed       int       `json:"passed"`
	Failed       int       `json:"failed"`
	ExitCode     int       `json:"exit_code"`
}

// Duration is FinishedAt - StartedAt.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store reads and writes run history.
type Store struct {
	db *sql.DB
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun saves run and its checks in one transaction. Counts and exit
// code are taken from results.
func (s *Store) RecordRun(ctx context.Context, run Run, results check.Results) (Run, error) {
	if run.ID == "" {
		return run, fmt.Errorf("run id is required")
	}
	run.Passed = len(results.Passed())
	run.Failed = len(results.Failed())
	run.ExitCode = results.ExitCode()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, suite, base_url, driver, artifacts_dir, started_at, finished_at, passed, failed, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Suite, run.BaseURL, run.Driver, run.ArtifactsDir,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Passed, run.Failed, run.ExitCode)
	if err != nil {
		return run, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO checks (run_id, seq, scenario, step, label, passed, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return run, err
	}
	defer stmt.Close()
	for i, c := range results.Checks {
		if _, err := stmt.ExecContext(ctx, run.ID, i, c.Scenario, c.Step, c.Label, boolInt(c.Passed), c.Reason); err != nil {
			return run, fmt.Errorf("insert check %d: %w", i, err)
		}
	}
	return run, tx.Commit()
}

const runColumns = `id, kind, suite, base_url, driver, artifacts_dir, started_at, finished_at, passed, failed, exit_code`

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return r, err
}

// RunChecks returns a run's checks in record order.
func (s *Store) RunChecks(ctx context.Context, id string) (check.Results, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario, step, label, passed, reason FROM checks WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return check.Results{}, err
	}
	defer rows.Close()

	var res check.Results
	for rows.Next() {
		var c check.Check
		var passed int
		if err := rows.Scan(&c.Scenario, &c.Step, &c.Label, &passed, &c.Reason); err != nil {
			return check.Results{}, err
		}
		c.Passed = passed != 0
		res.Checks = append(res.Checks, c)
	}
	return res, rows.Err()
}

// Prune deletes runs started before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var started, finished int64
	err := row.Scan(&r.ID, &r.Kind, &r.Suite, &r.BaseURL, &r.Driver, &r.ArtifactsDir,
		&started, &finished, &r.Passed, &r.Failed, &r.ExitCode)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started)
	r.FinishedAt = time.UnixMilli(finished)
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
