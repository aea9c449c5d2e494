package service

import (
	"fmt"

	"github.com/jengzang/machine-efficiency-go/internal/models"
	"github.com/jengzang/machine-efficiency-go/internal/pipeline"
	"github.com/jengzang/machine-efficiency-go/internal/repository"
)

// RunService handles business logic for pipeline runs
type RunService struct {
	runs   *repository.RunRepository
	evals  *repository.EvaluationRepository
	chains *pipeline.Service
}

// NewRunService creates a new run service
func NewRunService(runs *repository.RunRepository, evals *repository.EvaluationRepository, chains *pipeline.Service) *RunService {
	return &RunService{runs: runs, evals: evals, chains: chains}
}

// RunDetail is a run with its evaluation, when it has one
type RunDetail struct {
	*models.Run
	Evaluation *models.Evaluation `json:"evaluation,omitempty"`
}

// ListRuns retrieves runs with optional filters and the matching total
func (s *RunService) ListRuns(kind, status string, limit, offset int) ([]*models.Run, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if status != "" && !validStatus(status) {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}

	runs, err := s.runs.List(kind, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.runs.Count(kind, status)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// GetRun retrieves a run and its evaluation
func (s *RunService) GetRun(id string) (*RunDetail, error) {
	run, err := s.runs.GetByID(id)
	if err != nil {
		return nil, err
	}
	detail := &RunDetail{Run: run}
	if ev, err := s.evals.GetByRunID(id); err == nil {
		detail.Evaluation = ev
	}
	return detail, nil
}

// CurrentRun retrieves the most recently promoted run and its evaluation
func (s *RunService) CurrentRun() (*RunDetail, error) {
	run, err := s.runs.Current()
	if err != nil {
		return nil, err
	}
	detail := &RunDetail{Run: run}
	if ev, err := s.evals.GetByRunID(run.ID); err == nil {
		detail.Evaluation = ev
	}
	return detail, nil
}

// TriggerRetrain starts a prepare, train and promote chain in the background
func (s *RunService) TriggerRetrain(createdBy string) (string, error) {
	return s.chains.TriggerChain(createdBy)
}

func validStatus(status string) bool {
	switch status {
	case models.RunStatusPending, models.RunStatusRunning, models.RunStatusCompleted, models.RunStatusFailed:
		return true
	}
	return false
}
