package service

import (
	"errors"
	"time"

	"github.com/jengzang/machine-efficiency-go/internal/inference"
	"github.com/jengzang/machine-efficiency-go/internal/models"
	"github.com/jengzang/machine-efficiency-go/internal/repository"
)

// ErrNotReady is returned before a model has been loaded.
var ErrNotReady = errors.New("model not loaded yet")

// PredictionService answers classification requests from the active model
type PredictionService struct {
	holder *inference.Holder
	evals  *repository.EvaluationRepository
	now    func() time.Time
}

// NewPredictionService creates a new prediction service. evals may be nil.
func NewPredictionService(holder *inference.Holder, evals *repository.EvaluationRepository) *PredictionService {
	return &PredictionService{holder: holder, evals: evals, now: time.Now}
}

// Ready reports whether predictions can be served
func (s *PredictionService) Ready() bool {
	return s.holder.IsReady()
}

func (s *PredictionService) predictor() (*inference.Predictor, error) {
	p := s.holder.Load()
	if p == nil {
		return nil, ErrNotReady
	}
	return p, nil
}

// Predict classifies one record given as named fields
func (s *PredictionService) Predict(fields map[string]string) (*inference.Prediction, error) {
	p, err := s.predictor()
	if err != nil {
		return nil, err
	}
	return p.PredictFields(fields)
}

// Schema describes the expected input of Predict
func (s *PredictionService) Schema() (*inference.Schema, error) {
	p, err := s.predictor()
	if err != nil {
		return nil, err
	}
	schema := p.Schema(s.now())
	return &schema, nil
}

// ModelInfo is the active model with its stored evaluation, if any
type ModelInfo struct {
	inference.Info
	Evaluation *models.Evaluation `json:"evaluation,omitempty"`
}

// ModelInfo returns metadata about the active model
func (s *PredictionService) ModelInfo() (*ModelInfo, error) {
	p, err := s.predictor()
	if err != nil {
		return nil, err
	}

	info := &ModelInfo{Info: p.Info()}
	if s.evals != nil && info.RunID != "" {
		if ev, err := s.evals.GetByRunID(info.RunID); err == nil {
			info.Evaluation = ev
		}
	}
	return info, nil
}
