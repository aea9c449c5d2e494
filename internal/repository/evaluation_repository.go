package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jengzang/machine-efficiency-go/internal/models"
)

// EvaluationRepository stores test-split reports per run
type EvaluationRepository struct {
	db *sql.DB
}

// NewEvaluationRepository creates a new evaluation repository
func NewEvaluationRepository(db *sql.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Save inserts or replaces the evaluation of a run
func (r *EvaluationRepository) Save(ev *models.Evaluation) error {
	query := `
		INSERT OR REPLACE INTO evaluations (
			run_id, accuracy, weighted_precision, weighted_recall, weighted_f1,
			test_samples, iterations, converged, report_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		ev.RunID,
		ev.Accuracy,
		ev.WeightedPrecision,
		ev.WeightedRecall,
		ev.WeightedF1,
		ev.TestSamples,
		ev.Iterations,
		ev.Converged,
		ev.ReportJSON,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	return nil
}

// GetByRunID retrieves the evaluation of a run
func (r *EvaluationRepository) GetByRunID(runID string) (*models.Evaluation, error) {
	query := `
		SELECT run_id, accuracy, weighted_precision, weighted_recall, weighted_f1,
			   test_samples, iterations, converged, report_json, created_at
		FROM evaluations
		WHERE run_id = ?
	`

	ev := &models.Evaluation{}
	err := r.db.QueryRow(query, runID).Scan(
		&ev.RunID,
		&ev.Accuracy,
		&ev.WeightedPrecision,
		&ev.WeightedRecall,
		&ev.WeightedF1,
		&ev.TestSamples,
		&ev.Iterations,
		&ev.Converged,
		&ev.ReportJSON,
		&ev.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation of run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return ev, nil
}
