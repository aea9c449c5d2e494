// Package model implements multinomial logistic regression with an L2
// penalty, fitted by L-BFGS.
package model

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Options control fitting.
type Options struct {
	// C is the inverse regularization strength.
	C         float64
	MaxIter   int
	Tolerance float64
	Logger    *slog.Logger
}

// DefaultOptions matches the training defaults: C=1, 1000 iterations.
func DefaultOptions() Options {
	return Options{C: 1, MaxIter: 1000, Tolerance: 1e-4}
}

// LogisticRegression is a fitted classifier. Coef has one row per class and
// one column per feature; Classes names the rows.
type LogisticRegression struct {
	Features  []string    `cbor:"features" json:"features"`
	Classes   []string    `cbor:"classes" json:"classes"`
	Coef      [][]float64 `cbor:"coef" json:"coef"`
	Intercept []float64   `cbor:"intercept" json:"intercept"`

	C          float64 `cbor:"c" json:"c"`
	MaxIter    int     `cbor:"max_iter" json:"max_iter"`
	Tolerance  float64 `cbor:"tolerance" json:"tolerance"`
	Iterations int     `cbor:"iterations" json:"iterations"`
	Converged  bool    `cbor:"converged" json:"converged"`
	Loss       float64 `cbor:"loss" json:"loss"`

	// Digests of the scaler and encoder artifacts the model was fit
	// against. Set by the training stage.
	ScalerDigest   string `cbor:"scaler_digest" json:"scaler_digest"`
	EncodersDigest string `cbor:"encoders_digest" json:"encoders_digest"`
}

// Fit trains on the scaled matrix X with labels y in [0, len(classes)).
//
// Hitting the iteration limit is not an error: the model is returned with
// Converged=false and a warning is logged.
func Fit(X features.Matrix, y []int, classes []string, opts Options) (*LogisticRegression, error) {
	log := logger.OrDiscard(opts.Logger)
	if opts.C <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "C must be positive, got %v", opts.C)
	}
	if opts.MaxIter <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "max_iter must be positive, got %d", opts.MaxIter)
	}
	if len(X) == 0 {
		return nil, apperr.New(apperr.InsufficientData, "no training rows")
	}
	if len(X) != len(y) {
		return nil, apperr.New(apperr.ShapeMismatch, "%d rows but %d labels", len(X), len(y))
	}
	if err := features.CheckWidth("training matrix", X); err != nil {
		return nil, err
	}

	k := len(classes)
	present := make(map[int]bool, k)
	for i, label := range y {
		if label < 0 || label >= k {
			return nil, apperr.New(apperr.ShapeMismatch, "label %d at row %d outside [0, %d)", label, i, k)
		}
		present[label] = true
	}
	if len(present) < 2 {
		return nil, apperr.New(apperr.InsufficientData, "training labels contain %d class(es), need at least 2", len(present))
	}

	obj := &objective{X: X, y: y, k: k, d: features.Count, c: opts.C}
	problem := optimize.Problem{Func: obj.loss, Grad: obj.grad}
	settings := &optimize.Settings{
		MajorIterations:   opts.MaxIter,
		GradientThreshold: opts.Tolerance,
	}
	x0 := make([]float64, k*(obj.d+1))

	res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if res == nil {
		return nil, apperr.WrapAs(apperr.Internal, err, "L-BFGS returned no result")
	}
	for _, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperr.New(apperr.Internal, "L-BFGS diverged (status %v)", res.Status)
		}
	}

	converged := err == nil
	switch res.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit,
		optimize.GradientEvaluationLimit, optimize.RuntimeLimit:
		converged = false
	}
	if !converged {
		attrs := []any{
			"kind", apperr.Convergence,
			"status", res.Status.String(),
			"iterations", res.Stats.MajorIterations,
			"max_iter", opts.MaxIter,
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		log.Warn("lbfgs failed to converge; increase max_iter or scale the data", attrs...)
	}

	m := &LogisticRegression{
		Features:   slices.Clone(features.Names),
		Classes:    slices.Clone(classes),
		Coef:       make([][]float64, k),
		Intercept:  make([]float64, k),
		C:          opts.C,
		MaxIter:    opts.MaxIter,
		Tolerance:  opts.Tolerance,
		Iterations: res.Stats.MajorIterations,
		Converged:  converged,
		Loss:       res.F,
	}
	for c := 0; c < k; c++ {
		m.Coef[c] = slices.Clone(res.X[c*obj.d : (c+1)*obj.d])
	}
	copy(m.Intercept, res.X[k*obj.d:])
	return m, nil
}

// Validate checks a loaded model against the canonical feature order and
// its own dimensions.
func (m *LogisticRegression) Validate() error {
	if err := features.CheckNames("model", m.Features); err != nil {
		return err
	}
	k := len(m.Classes)
	if k < 2 || len(m.Coef) != k || len(m.Intercept) != k {
		return apperr.New(apperr.ShapeMismatch,
			"model has %d classes, %d coefficient rows and %d intercepts", k, len(m.Coef), len(m.Intercept))
	}
	for c, row := range m.Coef {
		if len(row) != features.Count {
			return apperr.New(apperr.ShapeMismatch,
				"coefficient row %d has %d entries, expected %d", c, len(row), features.Count)
		}
	}
	return nil
}

// NumClasses is len(Classes).
func (m *LogisticRegression) NumClasses() int {
	return len(m.Classes)
}

// DecisionFunction returns the per-class linear scores for v.
func (m *LogisticRegression) DecisionFunction(v features.Vector) ([]float64, error) {
	if len(v) != features.Count {
		return nil, apperr.New(apperr.ShapeMismatch,
			"input has %d features, model expects %d", len(v), features.Count)
	}
	scores := make([]float64, len(m.Coef))
	for c, w := range m.Coef {
		scores[c] = floats.Dot(w, v) + m.Intercept[c]
	}
	return scores, nil
}

// PredictProba returns the softmax class probabilities for v.
func (m *LogisticRegression) PredictProba(v features.Vector) ([]float64, error) {
	scores, err := m.DecisionFunction(v)
	if err != nil {
		return nil, err
	}
	softmax(scores)
	return scores, nil
}

// Predict returns the most probable class index for v. Ties go to the lower
// index.
func (m *LogisticRegression) Predict(v features.Vector) (int, []float64, error) {
	p, err := m.PredictProba(v)
	if err != nil {
		return -1, nil, err
	}
	return argmax(p), p, nil
}

// PredictBatch predicts every row of X.
func (m *LogisticRegression) PredictBatch(X features.Matrix) ([]int, [][]float64, error) {
	labels := make([]int, len(X))
	probs := make([][]float64, len(X))
	for i, row := range X {
		l, p, err := m.Predict(row)
		if err != nil {
			return nil, nil, apperr.Wrap(err, "batch prediction")
		}
		labels[i], probs[i] = l, p
	}
	return labels, probs, nil
}

func argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// softmax replaces scores with exp(s)/sum(exp(s)) in place.
func softmax(scores []float64) {
	lse := logSumExp(scores)
	for i, s := range scores {
		scores[i] = math.Exp(s - lse)
	}
}

func logSumExp(s []float64) float64 {
	hi := floats.Max(s)
	var sum float64
	for _, v := range s {
		sum += math.Exp(v - hi)
	}
	return hi + math.Log(sum)
}
