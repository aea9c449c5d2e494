package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jengzang/machine-efficiency-go/internal/config"
	"github.com/jengzang/machine-efficiency-go/internal/models"
	"github.com/jengzang/machine-efficiency-go/internal/pipeline"
	"github.com/jengzang/machine-efficiency-go/internal/repository"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Split.Seed = 7
	cfg.Training.MaxIter = 25
	cfg.Encoding.OperationModes = nil

	p := PrepareOptions(cfg)
	require.Equal(t, uint64(7), p.Seed)
	require.Equal(t, 0.2, p.TestSize)
	require.Empty(t, p.Vocab.OperationModes)
	require.Equal(t, []string{"Low", "Medium", "High"}, p.Vocab.EfficiencyLabels)

	tr := TrainOptions(cfg)
	require.Equal(t, 25, tr.Model.MaxIter)
	require.Equal(t, 1.0, tr.Model.C)
}

func TestNewMirrorDisabled(t *testing.T) {
	m, err := NewMirror(config.Mirror{})
	require.NoError(t, err)
	require.Nil(t, m)
}

func newApp(t *testing.T) *App {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(root, "runs.db")
	cfg.Paths.ArtifactRoot = filepath.Join(root, "artifacts")

	a, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew(t *testing.T) {
	a := newApp(t)

	require.Equal(t, []string{pipeline.StagePrepare, pipeline.StagePromote, pipeline.StageTrain}, a.Runner.Registry().Names())
	require.Empty(t, a.Chains.Active())
}

func TestTrainedRun(t *testing.T) {
	a := newApp(t)

	record := func(id, kind, stages, modelDir string, completed bool) {
		t.Helper()
		require.NoError(t, a.Runs.Create(&models.Run{
			ID:           id,
			Kind:         kind,
			Stages:       stages,
			ProcessedDir: "processed",
			ModelDir:     modelDir,
			CreatedBy:    "cli",
		}))
		if completed {
			require.NoError(t, a.Runs.MarkAsCompleted(id, "{}"))
		}
	}
	record("train-1", models.RunKindTrain, "train", "models/a", true)
	record("chain-1", models.RunKindChain, "prepare,train,promote", "models/b", true)
	record("prepare-1", models.RunKindPrepare, "prepare", "models/a", true)
	record("train-2", models.RunKindTrain, "train", "models/a", false)

	run, err := a.TrainedRun("", "models/a/")
	require.NoError(t, err)
	require.Equal(t, "train-1", run.ID)

	run, err = a.TrainedRun("", "models/b")
	require.NoError(t, err)
	require.Equal(t, "chain-1", run.ID)

	run, err = a.TrainedRun("chain-1", "ignored")
	require.NoError(t, err)
	require.Equal(t, "models/b", run.ModelDir)

	_, err = a.TrainedRun("", "models/c")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = a.TrainedRun("missing", "")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
