package pipeline

import (
	"context"
	"log/slog"

	"github.com/jengzang/machine-efficiency-go/internal/artifact"
	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/internal/model"
	"github.com/jengzang/machine-efficiency-go/internal/stats"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// TrainOptions control the training stage.
type TrainOptions struct {
	Model  model.Options
	Logger *slog.Logger
}

// Train fits the classifier on the split in processedDir, writes the model
// and its evaluation to modelDir and returns the evaluation.
func Train(ctx context.Context, processedDir, modelDir string, opts TrainOptions) (*EvaluationReport, error) {
	log := logger.OrDiscard(opts.Logger).With("stage", StageTrain)

	report, err := train(ctx, log, processedDir, modelDir, opts)
	if err != nil {
		err = apperr.Wrap(err, "train from "+processedDir)
		logFailure(log, err)
		return nil, err
	}
	return report, nil
}

func train(ctx context.Context, log *slog.Logger, processedDir, modelDir string, opts TrainOptions) (*EvaluationReport, error) {
	data, err := loadTrainingData(processedDir)
	if err != nil {
		return nil, err
	}
	classes := data.Encoders.Efficiency.Classes
	log.Info("training data loaded",
		"train", len(data.XTrain.Rows), "test", len(data.XTest.Rows), "classes", classes)

	if err := ctx.Err(); err != nil {
		return nil, apperr.WrapAs(apperr.Internal, err, "cancelled")
	}

	mopts := opts.Model
	mopts.Logger = log
	m, err := model.Fit(data.XTrain.Rows, data.YTrain, classes, mopts)
	if err != nil {
		return nil, err
	}
	log.Info("model fitted", "iterations", m.Iterations, "converged", m.Converged, "loss", m.Loss)

	// bind the model to the exact fit it was trained against
	if m.ScalerDigest, err = artifact.Digest(processedDir, artifact.Scaler); err != nil {
		return nil, err
	}
	if m.EncodersDigest, err = artifact.Digest(processedDir, artifact.Encoders); err != nil {
		return nil, err
	}

	if err := artifact.Save(modelDir, artifact.Model, m); err != nil {
		return nil, err
	}
	log.Info("model saved", "dir", modelDir)

	report, err := evaluate(m, data.XTest.Rows, data.YTest)
	if err != nil {
		return nil, err
	}
	report.TrainSamples = len(data.XTrain.Rows)

	log.Info("evaluation",
		"accuracy", report.Accuracy,
		"precision", report.WeightedPrecision,
		"recall", report.WeightedRecall,
		"f1", report.WeightedF1,
		"log_loss", report.LogLoss,
		"test_samples", report.Samples)
	for c, cm := range report.PerClass {
		log.Debug("class metrics", "class", classes[c],
			"precision", cm.Precision, "recall", cm.Recall, "f1", cm.F1, "support", cm.Support)
	}

	if err := artifact.Save(modelDir, artifact.Evaluation, report); err != nil {
		return nil, err
	}
	return report, nil
}

func evaluate(m *model.LogisticRegression, X features.Matrix, y []int) (*EvaluationReport, error) {
	pred, probs, err := m.PredictBatch(X)
	if err != nil {
		return nil, err
	}
	r, err := stats.Classify(y, pred, m.NumClasses())
	if err != nil {
		return nil, apperr.WrapAs(apperr.ShapeMismatch, err, "evaluate")
	}
	return &EvaluationReport{
		Report:     *r,
		Classes:    m.Classes,
		Converged:  m.Converged,
		Iterations: m.Iterations,
		LogLoss:    stats.LogLoss(y, probs),
	}, nil
}
