package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jengzang/machine-efficiency-go/internal/artifact"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Stage names.
const (
	StagePrepare = "prepare"
	StageTrain   = "train"
	StagePromote = "promote"
)

// ChainStages is the full retraining sequence.
var ChainStages = []string{StagePrepare, StageTrain, StagePromote}

// RunContext carries paths into a run and stage outputs between stages.
type RunContext struct {
	RunID        string
	RawData      string
	ProcessedDir string
	ModelDir     string
	PointerPath  string
	// SourceRunID names the run that trained the artifacts a promote-only
	// run serves. Empty means RunID.
	SourceRunID string
	Logger      *slog.Logger

	Split      *SplitArtifacts
	Evaluation *EvaluationReport
	Pointer    *artifact.Pointer
}

// ServedRunID is the run ID recorded in the pointer on promotion.
func (rc *RunContext) ServedRunID() string {
	if rc.SourceRunID != "" {
		return rc.SourceRunID
	}
	return rc.RunID
}

// Stage is one step of a run.
type Stage interface {
	Name() string
	Run(ctx context.Context, rc *RunContext) error
}

// PrepareStage runs Prepare from rc.RawData into rc.ProcessedDir.
type PrepareStage struct {
	Options PrepareOptions
}

func (s *PrepareStage) Name() string { return StagePrepare }

func (s *PrepareStage) Run(ctx context.Context, rc *RunContext) error {
	opts := s.Options
	if rc.Logger != nil {
		opts.Logger = rc.Logger
	}
	out, err := Prepare(ctx, rc.RawData, rc.ProcessedDir, opts)
	if err != nil {
		return err
	}
	rc.Split = out
	return nil
}

// TrainStage runs Train from rc.ProcessedDir into rc.ModelDir.
type TrainStage struct {
	Options TrainOptions
}

func (s *TrainStage) Name() string { return StageTrain }

func (s *TrainStage) Run(ctx context.Context, rc *RunContext) error {
	opts := s.Options
	if rc.Logger != nil {
		opts.Logger = rc.Logger
	}
	report, err := Train(ctx, rc.ProcessedDir, rc.ModelDir, opts)
	if err != nil {
		return err
	}
	rc.Evaluation = report
	return nil
}

// PromoteStage points rc.PointerPath at the run.
type PromoteStage struct {
	Mirror artifact.Mirror
	Now    func() time.Time
}

func (s *PromoteStage) Name() string { return StagePromote }

func (s *PromoteStage) Run(ctx context.Context, rc *RunContext) error {
	ptr, err := Promote(ctx, PromoteOptions{
		RunID:        rc.ServedRunID(),
		ProcessedDir: rc.ProcessedDir,
		ModelDir:     rc.ModelDir,
		PointerPath:  rc.PointerPath,
		Mirror:       s.Mirror,
		Now:          s.Now,
		Logger:       rc.Logger,
	})
	if err != nil {
		return err
	}
	rc.Pointer = ptr
	return nil
}

// Registry maps stage names to stages.
type Registry struct {
	stages map[string]Stage
}

// NewRegistry registers stages; a duplicate name panics.
func NewRegistry(stages ...Stage) *Registry {
	r := &Registry{stages: make(map[string]Stage, len(stages))}
	for _, s := range stages {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds s under its name.
func (r *Registry) Register(s Stage) error {
	if _, ok := r.stages[s.Name()]; ok {
		return apperr.New(apperr.InvalidInput, "stage %q registered twice", s.Name())
	}
	r.stages[s.Name()] = s
	return nil
}

// Get returns the stage called name.
func (r *Registry) Get(name string) (Stage, error) {
	s, ok := r.stages[name]
	if !ok {
		return nil, apperr.New(apperr.InvalidInput, "unknown stage %q (known: %v)", name, r.Names())
	}
	return s, nil
}

// Resolve looks up every name in order.
func (r *Registry) Resolve(names []string) ([]Stage, error) {
	if len(names) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "no stages requested")
	}
	out := make([]Stage, 0, len(names))
	for _, n := range names {
		s, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Names lists registered stages alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.stages))
	for n := range r.stages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
