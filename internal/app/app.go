// Package app wires configuration, storage and pipeline stages together for
// the binaries.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jengzang/machine-efficiency-go/internal/artifact"
	"github.com/jengzang/machine-efficiency-go/internal/config"
	"github.com/jengzang/machine-efficiency-go/internal/database"
	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/internal/model"
	"github.com/jengzang/machine-efficiency-go/internal/models"
	"github.com/jengzang/machine-efficiency-go/internal/pipeline"
	"github.com/jengzang/machine-efficiency-go/internal/repository"
)

// App holds the long-lived dependencies shared by the server and the CLI.
type App struct {
	Config *config.Config
	Log    *slog.Logger
	DB     *sql.DB
	Runs   *repository.RunRepository
	Evals  *repository.EvaluationRepository
	Runner *pipeline.Runner
	Chains *pipeline.Service
}

// New opens the run registry and builds the stage runner.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	db, err := database.Open(database.Config{Path: cfg.DBPath, Logger: log})
	if err != nil {
		return nil, err
	}

	mirror, err := NewMirror(cfg.Mirror)
	if err != nil {
		db.Close()
		return nil, err
	}

	runs := repository.NewRunRepository(db)
	evals := repository.NewEvaluationRepository(db)
	runner := pipeline.NewRunner(NewRegistry(cfg, mirror), runs, evals, log)

	return &App{
		Config: cfg,
		Log:    log,
		DB:     db,
		Runs:   runs,
		Evals:  evals,
		Runner: runner,
		Chains: pipeline.NewService(runner, pipeline.ChainConfig{
			RawData:     cfg.Paths.RawData,
			RunsDir:     cfg.Paths.RunsDir(),
			PointerPath: cfg.Paths.Current(),
		}, log),
	}, nil
}

// Close stops background runs and closes the database.
func (a *App) Close() error {
	a.Chains.Close()
	return a.DB.Close()
}

// NewRegistry registers the prepare, train and promote stages.
func NewRegistry(cfg *config.Config, mirror artifact.Mirror) *pipeline.Registry {
	return pipeline.NewRegistry(
		&pipeline.PrepareStage{Options: PrepareOptions(cfg)},
		&pipeline.TrainStage{Options: TrainOptions(cfg)},
		&pipeline.PromoteStage{Mirror: mirror},
	)
}

// PrepareOptions maps the configuration onto the data-split stage.
func PrepareOptions(cfg *config.Config) pipeline.PrepareOptions {
	return pipeline.PrepareOptions{
		TestSize: cfg.Split.TestSize,
		Seed:     cfg.Split.Seed,
		Vocab: features.Vocabulary{
			OperationModes:   cfg.Encoding.OperationModes,
			EfficiencyLabels: cfg.Encoding.EfficiencyLabels,
		},
	}
}

// TrainOptions maps the configuration onto the training stage.
func TrainOptions(cfg *config.Config) pipeline.TrainOptions {
	return pipeline.TrainOptions{
		Model: model.Options{
			C:         cfg.Training.C,
			MaxIter:   cfg.Training.MaxIter,
			Tolerance: cfg.Training.Tolerance,
		},
	}
}

// NewMirror connects the configured object storage, or returns nil when
// mirroring is off.
func NewMirror(m config.Mirror) (artifact.Mirror, error) {
	if !m.Enabled() {
		return nil, nil
	}
	s3, err := artifact.NewS3Mirror(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.Prefix, m.UseSSL)
	if err != nil {
		return nil, err
	}
	return s3, nil
}

// TrainedRun finds the recorded run whose model a promote-only run serves:
// the run named id, or when id is empty the newest completed run that
// trained into modelDir.
func (a *App) TrainedRun(id, modelDir string) (*models.Run, error) {
	if id != "" {
		return a.Runs.GetByID(id)
	}

	recent, err := a.Runs.List("", models.RunStatusCompleted, 100, 0)
	if err != nil {
		return nil, err
	}
	want := filepath.Clean(modelDir)
	for _, run := range recent {
		if filepath.Clean(run.ModelDir) == want && slices.Contains(strings.Split(run.Stages, ","), pipeline.StageTrain) {
			return run, nil
		}
	}
	return nil, fmt.Errorf("no completed training run for %s: %w", modelDir, repository.ErrNotFound)
}
