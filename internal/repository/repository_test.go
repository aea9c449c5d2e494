package repository_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jengzang/machine-efficiency-go/internal/database"
	"github.com/jengzang/machine-efficiency-go/internal/models"
	"github.com/jengzang/machine-efficiency-go/internal/repository"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	repo := repository.NewRunRepository(openDB(t))

	run := &models.Run{ID: "r1", Kind: models.RunKindChain, Stages: "prepare,train,promote", CreatedBy: "test"}
	require.NoError(t, repo.Create(run))

	got, err := repo.GetByID("r1")
	require.NoError(t, err)
	require.Equal(t, models.RunStatusPending, got.Status)
	require.Equal(t, "prepare,train,promote", got.Stages)

	require.NoError(t, repo.MarkAsRunning("r1"))
	require.NoError(t, repo.MarkAsCompleted("r1", `{"accuracy":0.9}`))

	got, err = repo.GetByID("r1")
	require.NoError(t, err)
	require.Equal(t, models.RunStatusCompleted, got.Status)
	require.Equal(t, `{"accuracy":0.9}`, got.ResultSummary)
	require.NotZero(t, got.StartTime)
	require.NotZero(t, got.EndTime)

	require.NoError(t, repo.Create(&models.Run{ID: "r2", Kind: models.RunKindTrain}))
	require.NoError(t, repo.MarkAsFailed("r2", "ArtifactNotFoundError", "missing X_train.cbor"))

	failed, err := repo.List("", models.RunStatusFailed, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "ArtifactNotFoundError", failed[0].ErrorKind)

	all, err := repo.List("", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "r2", all[0].ID)

	n, err := repo.Count(models.RunKindChain, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRunNotFound(t *testing.T) {
	repo := repository.NewRunRepository(openDB(t))

	_, err := repo.GetByID("missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, repo.MarkAsRunning("missing"), repository.ErrNotFound)

	_, err = repo.Current()
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCurrentRun(t *testing.T) {
	repo := repository.NewRunRepository(openDB(t))
	require.NoError(t, repo.Create(&models.Run{ID: "a", Kind: models.RunKindChain}))
	require.NoError(t, repo.Create(&models.Run{ID: "b", Kind: models.RunKindChain}))
	require.NoError(t, repo.MarkAsPromoted("a"))
	require.NoError(t, repo.MarkAsPromoted("b"))

	cur, err := repo.Current()
	require.NoError(t, err)
	require.Equal(t, "b", cur.ID)
}

func TestEvaluation(t *testing.T) {
	db := openDB(t)
	runs := repository.NewRunRepository(db)
	evals := repository.NewEvaluationRepository(db)

	require.NoError(t, runs.Create(&models.Run{ID: "r1", Kind: models.RunKindTrain}))

	ev := &models.Evaluation{
		RunID:             "r1",
		Accuracy:          0.8,
		WeightedPrecision: 0.7,
		WeightedRecall:    0.8,
		WeightedF1:        0.75,
		TestSamples:       20,
		Iterations:        42,
		Converged:         true,
		ReportJSON:        "{}",
		CreatedAt:         1700000000,
	}
	require.NoError(t, evals.Save(ev))

	got, err := evals.GetByRunID("r1")
	require.NoError(t, err)
	require.Equal(t, ev, got)

	_, err = evals.GetByRunID("nope")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := database.Open(database.Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = database.Open(database.Config{Path: path})
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&n))
	require.Equal(t, 2, n)
}
