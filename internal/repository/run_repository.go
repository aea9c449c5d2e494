package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/machine-efficiency-go/internal/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

const runColumns = `id, kind, stages, status, raw_data, processed_dir, model_dir,
	start_time, end_time, result_summary, error_kind, error_message,
	promoted_at, created_by, created_at, updated_at`

// RunRepository handles database operations for pipeline runs
type RunRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db, now: time.Now}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	run := &models.Run{}
	err := s.Scan(
		&run.ID,
		&run.Kind,
		&run.Stages,
		&run.Status,
		&run.RawData,
		&run.ProcessedDir,
		&run.ModelDir,
		&run.StartTime,
		&run.EndTime,
		&run.ResultSummary,
		&run.ErrorKind,
		&run.ErrorMessage,
		&run.PromotedAt,
		&run.CreatedBy,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	return run, err
}

// Create inserts a pending run
func (r *RunRepository) Create(run *models.Run) error {
	now := r.now().Unix()
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}
	run.CreatedAt, run.UpdatedAt = now, now

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		run.ID,
		run.Kind,
		run.Stages,
		run.Status,
		run.RawData,
		run.ProcessedDir,
		run.ModelDir,
		run.StartTime,
		run.EndTime,
		run.ResultSummary,
		run.ErrorKind,
		run.ErrorMessage,
		run.PromotedAt,
		run.CreatedBy,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List retrieves runs with optional filters, newest first
func (r *RunRepository) List(kind string, status string, limit int, offset int) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`

	args := []interface{}{}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Count returns the number of runs matching the filters
func (r *RunRepository) Count(kind string, status string) (int, error) {
	query := `SELECT COUNT(*) FROM runs WHERE 1=1`
	args := []interface{}{}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// MarkAsRunning marks a run as running
func (r *RunRepository) MarkAsRunning(id string) error {
	now := r.now().Unix()
	query := `
		UPDATE runs
		SET status = ?, start_time = ?, updated_at = ?
		WHERE id = ?
	`
	return r.exec("mark run as running", query, models.RunStatusRunning, now, now, id)
}

// MarkAsCompleted marks a run as completed with a result summary
func (r *RunRepository) MarkAsCompleted(id string, resultSummary string) error {
	now := r.now().Unix()
	query := `
		UPDATE runs
		SET status = ?, end_time = ?, result_summary = ?, updated_at = ?
		WHERE id = ?
	`
	return r.exec("mark run as completed", query, models.RunStatusCompleted, now, resultSummary, now, id)
}

// MarkAsFailed marks a run as failed with the error kind and message
func (r *RunRepository) MarkAsFailed(id string, errorKind string, errorMessage string) error {
	now := r.now().Unix()
	query := `
		UPDATE runs
		SET status = ?, end_time = ?, error_kind = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`
	return r.exec("mark run as failed", query, models.RunStatusFailed, now, errorKind, errorMessage, now, id)
}

// MarkAsPromoted records that the run's artifacts are now served
func (r *RunRepository) MarkAsPromoted(id string) error {
	now := r.now().Unix()
	return r.exec("mark run as promoted",
		`UPDATE runs SET promoted_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
}

// Current returns the most recently promoted run
func (r *RunRepository) Current() (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE promoted_at > 0 ORDER BY promoted_at DESC, rowid DESC LIMIT 1`
	run, err := scanRun(r.db.QueryRow(query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("promoted run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) exec(what string, query string, args ...any) error {
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to %s: %w", what, ErrNotFound)
	}
	return nil
}
