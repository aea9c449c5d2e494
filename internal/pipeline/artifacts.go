// Package pipeline implements the offline stages that turn raw telemetry
// into a served model: prepare, train and promote.
package pipeline

import (
	"slices"

	"github.com/jengzang/machine-efficiency-go/internal/artifact"
	"github.com/jengzang/machine-efficiency-go/internal/dataset"
	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/internal/stats"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// FeatureTable is a persisted feature matrix together with its column names.
type FeatureTable struct {
	Features []string        `cbor:"features"`
	Rows     features.Matrix `cbor:"rows"`
}

func newTable(m features.Matrix) FeatureTable {
	return FeatureTable{Features: slices.Clone(features.Names), Rows: m}
}

// SplitArtifacts is what the data-split stage produced.
type SplitArtifacts struct {
	Dir      string
	XTrain   FeatureTable
	XTest    FeatureTable
	YTrain   []int
	YTest    []int
	Scaler   *features.Scaler
	Encoders *features.Encoders
	Profile  *dataset.Profile
}

// EvaluationReport is the test-split evaluation written by the training
// stage.
type EvaluationReport struct {
	stats.Report `cbor:"report"`

	Classes      []string `json:"classes" cbor:"classes"`
	TrainSamples int      `json:"train_samples" cbor:"train_samples"`
	Converged    bool     `json:"converged" cbor:"converged"`
	Iterations   int      `json:"iterations" cbor:"iterations"`
	LogLoss      float64  `json:"log_loss" cbor:"log_loss"`
}

// trainingData is the subset of SplitArtifacts the training stage reads.
type trainingData struct {
	XTrain   FeatureTable
	XTest    FeatureTable
	YTrain   []int
	YTest    []int
	Encoders *features.Encoders
}

func loadTrainingData(dir string) (*trainingData, error) {
	d := &trainingData{Encoders: &features.Encoders{}}
	loads := []struct {
		name string
		v    any
	}{
		{artifact.XTrain, &d.XTrain},
		{artifact.XTest, &d.XTest},
		{artifact.YTrain, &d.YTrain},
		{artifact.YTest, &d.YTest},
		{artifact.Encoders, d.Encoders},
	}
	for _, l := range loads {
		if err := artifact.Load(dir, l.name, l.v); err != nil {
			return nil, err
		}
	}
	if d.Encoders.Efficiency == nil || d.Encoders.OperationMode == nil {
		return nil, apperr.New(apperr.ArtifactInvalid, "encoders artifact in %s is incomplete", dir)
	}
	return d, d.check()
}

func (d *trainingData) check() error {
	for _, t := range []struct {
		what  string
		table FeatureTable
		y     []int
	}{
		{"X_train", d.XTrain, d.YTrain},
		{"X_test", d.XTest, d.YTest},
	} {
		if err := features.CheckNames(t.what, t.table.Features); err != nil {
			return err
		}
		if err := features.CheckWidth(t.what, t.table.Rows); err != nil {
			return err
		}
		if len(t.table.Rows) != len(t.y) {
			return apperr.New(apperr.ShapeMismatch,
				"%s has %d rows but %d labels", t.what, len(t.table.Rows), len(t.y))
		}
	}
	return nil
}
