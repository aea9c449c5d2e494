package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/internal/models"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// RunRecorder persists run bookkeeping.
type RunRecorder interface {
	Create(run *models.Run) error
	MarkAsRunning(id string) error
	MarkAsCompleted(id string, resultSummary string) error
	MarkAsFailed(id string, errorKind string, errorMessage string) error
	MarkAsPromoted(id string) error
}

// EvaluationRecorder persists evaluation headlines.
type EvaluationRecorder interface {
	Save(ev *models.Evaluation) error
}

// NopRecorder records nothing.
type NopRecorder struct{}

func (NopRecorder) Create(*models.Run) error { return nil }
func (NopRecorder) MarkAsRunning(string) error { return nil }
func (NopRecorder) MarkAsCompleted(string, string) error { return nil }
func (NopRecorder) MarkAsFailed(string, string, string) error { return nil }
func (NopRecorder) MarkAsPromoted(string) error { return nil }
func (NopRecorder) Save(*models.Evaluation) error { return nil }

// Runner executes named stages in order and records the run.
type Runner struct {
	registry *Registry
	runs     RunRecorder
	evals    EvaluationRecorder
	log      *slog.Logger
	now      func() time.Time
}

// NewRunner creates a runner. Nil recorders record nothing.
func NewRunner(registry *Registry, runs RunRecorder, evals EvaluationRecorder, log *slog.Logger) *Runner {
	if runs == nil {
		runs = NopRecorder{}
	}
	if evals == nil {
		evals = NopRecorder{}
	}
	return &Runner{
		registry: registry,
		runs:     runs,
		evals:    evals,
		log:      logger.OrDiscard(log),
		now:      time.Now,
	}
}

// Registry returns the runner's stages.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run executes stageNames against rc, stopping at the first failure. An
// empty rc.RunID gets a fresh UUID.
func (r *Runner) Run(ctx context.Context, kind string, stageNames []string, rc *RunContext, createdBy string) error {
	stages, err := r.registry.Resolve(stageNames)
	if err != nil {
		return err
	}
	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}

	log := r.log.With("run_id", rc.RunID)
	rc.Logger = log

	run := &models.Run{
		ID:           rc.RunID,
		Kind:         kind,
		Stages:       strings.Join(stageNames, ","),
		RawData:      rc.RawData,
		ProcessedDir: rc.ProcessedDir,
		ModelDir:     rc.ModelDir,
		CreatedBy:    createdBy,
	}
	if err := r.runs.Create(run); err != nil {
		return apperr.WrapAs(apperr.Internal, err, "record run")
	}
	r.record(log, "running", r.runs.MarkAsRunning(rc.RunID))

	log.Info("run started", "kind", kind, "stages", stageNames)
	started := r.now()

	for _, s := range stages {
		stageStart := r.now()
		log.Info("stage started", "stage", s.Name())

		if err := s.Run(ctx, rc); err != nil {
			r.record(log, "failed", r.runs.MarkAsFailed(rc.RunID, string(apperr.KindOf(err)), apperr.Message(err)))
			log.Error("run failed", "stage", s.Name(), "kind", apperr.KindOf(err))
			return err
		}

		switch s.Name() {
		case StageTrain:
			r.saveEvaluation(log, rc)
		case StagePromote:
			r.record(log, "promoted", r.runs.MarkAsPromoted(rc.ServedRunID()))
		}
		log.Info("stage finished", "stage", s.Name(), "duration", r.now().Sub(stageStart))
	}

	summary, err := json.Marshal(summarize(rc))
	if err != nil {
		summary = []byte("{}")
	}
	r.record(log, "completed", r.runs.MarkAsCompleted(rc.RunID, string(summary)))
	log.Info("run completed", "duration", r.now().Sub(started))
	return nil
}

func (r *Runner) saveEvaluation(log *slog.Logger, rc *RunContext) {
	ev := rc.Evaluation
	if ev == nil {
		return
	}
	full, err := json.Marshal(ev)
	if err != nil {
		full = []byte("{}")
	}
	r.record(log, "evaluation", r.evals.Save(&models.Evaluation{
		RunID:             rc.RunID,
		Accuracy:          ev.Accuracy,
		WeightedPrecision: ev.WeightedPrecision,
		WeightedRecall:    ev.WeightedRecall,
		WeightedF1:        ev.WeightedF1,
		TestSamples:       ev.Samples,
		Iterations:        ev.Iterations,
		Converged:         ev.Converged,
		ReportJSON:        string(full),
		CreatedAt:         r.now().Unix(),
	}))
}

// record logs bookkeeping failures; they never fail the run itself.
func (r *Runner) record(log *slog.Logger, what string, err error) {
	if err != nil {
		log.Warn("run bookkeeping failed", "update", what, "error", err)
	}
}

func summarize(rc *RunContext) map[string]any {
	s := map[string]any{}
	if rc.Split != nil {
		s["train_rows"] = len(rc.Split.YTrain)
		s["test_rows"] = len(rc.Split.YTest)
		if rc.Split.Profile != nil {
			s["class_counts"] = rc.Split.Profile.ClassCounts
		}
	}
	if ev := rc.Evaluation; ev != nil {
		s["accuracy"] = ev.Accuracy
		s["weighted_f1"] = ev.WeightedF1
		s["converged"] = ev.Converged
		s["iterations"] = ev.Iterations
	}
	if rc.Pointer != nil {
		s["promoted_run_id"] = rc.Pointer.RunID
		s["promoted_at"] = rc.Pointer.PromotedAt
	}
	return s
}
