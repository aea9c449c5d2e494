package pipeline

import (
	"context"
	"log/slog"

	"github.com/jengzang/machine-efficiency-go/internal/artifact"
	"github.com/jengzang/machine-efficiency-go/internal/dataset"
	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// PrepareOptions control the data-split stage.
type PrepareOptions struct {
	TestSize float64
	Seed     uint64
	Vocab    features.Vocabulary
	Logger   *slog.Logger
}

// DefaultPrepareOptions is an 80/20 split with seed 42 and the fixed
// vocabularies.
func DefaultPrepareOptions() PrepareOptions {
	return PrepareOptions{
		TestSize: 0.2,
		Seed:     42,
		Vocab: features.Vocabulary{
			OperationModes:   []string{"Idle", "Active", "Maintenance"},
			EfficiencyLabels: []string{"Low", "Medium", "High"},
		},
	}
}

// Prepare reads rawCSV, encodes and splits it, fits the scaler on the
// training rows and writes every split artifact to outDir.
func Prepare(ctx context.Context, rawCSV, outDir string, opts PrepareOptions) (*SplitArtifacts, error) {
	log := logger.OrDiscard(opts.Logger).With("stage", StagePrepare)

	out, err := prepare(ctx, log, rawCSV, outDir, opts)
	if err != nil {
		err = apperr.Wrap(err, "prepare "+rawCSV)
		logFailure(log, err)
		return nil, err
	}
	return out, nil
}

func prepare(ctx context.Context, log *slog.Logger, rawCSV, outDir string, opts PrepareOptions) (*SplitArtifacts, error) {
	log.Info("loading raw data", "path", rawCSV)
	records, err := dataset.LoadCSV(rawCSV)
	if err != nil {
		return nil, err
	}
	log.Info("raw data loaded", "rows", len(records))

	enc, X, y, err := features.Fit(records, opts.Vocab)
	if err != nil {
		return nil, err
	}
	log.Info("categorical columns encoded",
		"operation_mode", enc.OperationMode.Mapping(),
		"efficiency_status", enc.Efficiency.Mapping())

	profile := dataset.Describe(X, y, enc.Efficiency.Classes)
	log.Info("dataset profile", "rows", profile.Rows, "class_counts", profile.ClassCounts, "balance", profile.Balance)
	for _, f := range profile.Features {
		log.Debug("feature profile", "feature", f.Name,
			"min", f.Summary.Min, "median", f.Summary.Median, "max", f.Summary.Max,
			"mean", f.Summary.Mean, "std", f.Summary.Std, "target_corr", f.TargetCorrelation)
	}

	if err := ctx.Err(); err != nil {
		return nil, apperr.WrapAs(apperr.Internal, err, "cancelled")
	}

	split, err := dataset.StratifiedSplit(y, opts.TestSize, opts.Seed)
	if err != nil {
		return nil, err
	}
	log.Info("data split", "train", len(split.Train), "test", len(split.Test), "seed", opts.Seed)

	sc, err := features.FitScaler(X.Rows(split.Train))
	if err != nil {
		return nil, err
	}
	xTrain, err := sc.TransformMatrix(X.Rows(split.Train))
	if err != nil {
		return nil, err
	}
	xTest, err := sc.TransformMatrix(X.Rows(split.Test))
	if err != nil {
		return nil, err
	}
	log.Info("scaler fitted on training rows", "samples", sc.Samples)

	out := &SplitArtifacts{
		Dir:      outDir,
		XTrain:   newTable(xTrain),
		XTest:    newTable(xTest),
		YTrain:   pick(y, split.Train),
		YTest:    pick(y, split.Test),
		Scaler:   sc,
		Encoders: enc,
		Profile:  profile,
	}

	writes := []struct {
		name string
		v    any
	}{
		{artifact.XTrain, out.XTrain},
		{artifact.XTest, out.XTest},
		{artifact.YTrain, out.YTrain},
		{artifact.YTest, out.YTest},
		{artifact.Scaler, out.Scaler},
		{artifact.Encoders, out.Encoders},
		{artifact.Profile, out.Profile},
	}
	for _, w := range writes {
		if err := artifact.Save(outDir, w.name, w.v); err != nil {
			return nil, err
		}
	}
	log.Info("split artifacts saved", "dir", outDir)

	return out, nil
}

func pick(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
