// Package inference serves predictions from a trained run.
package inference

import (
	"time"

	"github.com/jengzang/machine-efficiency-go/internal/artifact"
	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/internal/model"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Prediction is the answer for one record.
type Prediction struct {
	Label         string             `json:"label"`
	ClassIndex    int                `json:"class_index"`
	Probabilities map[string]float64 `json:"probabilities"`
	RunID         string             `json:"run_id,omitempty"`
}

// Predictor holds everything needed to classify a record. It is immutable
// once loaded and safe for concurrent use.
type Predictor struct {
	RunID        string
	ProcessedDir string
	ModelDir     string
	LoadedAt     time.Time

	transformer *features.Transformer
	model       *model.LogisticRegression
}

// Load reads the scaler and encoders from processedDir and the model from
// modelDir, and checks that they fit together. The model must have been
// trained against these exact scaler and encoder files; a split prepared
// again after training is ArtifactInvalid.
func Load(processedDir, modelDir string) (*Predictor, error) {
	var sc features.Scaler
	scDigest, err := artifact.LoadDigest(processedDir, artifact.Scaler, &sc)
	if err != nil {
		return nil, err
	}
	var enc features.Encoders
	encDigest, err := artifact.LoadDigest(processedDir, artifact.Encoders, &enc)
	if err != nil {
		return nil, err
	}
	var m model.LogisticRegression
	if err := artifact.Load(modelDir, artifact.Model, &m); err != nil {
		return nil, err
	}

	tr, err := features.NewTransformer(&enc, &sc)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.NumClasses() != len(enc.Efficiency.Classes) {
		return nil, apperr.New(apperr.ShapeMismatch,
			"model has %d classes but the label encoder has %d", m.NumClasses(), len(enc.Efficiency.Classes))
	}
	if m.ScalerDigest != scDigest || m.EncodersDigest != encDigest {
		return nil, apperr.New(apperr.ArtifactInvalid,
			"model in %s was not trained on the scaler and encoders in %s", modelDir, processedDir)
	}

	return &Predictor{
		ProcessedDir: processedDir,
		ModelDir:     modelDir,
		LoadedAt:     time.Now(),
		transformer:  tr,
		model:        &m,
	}, nil
}

// LoadCurrent loads the run named by the pointer file.
func LoadCurrent(pointerPath string) (*Predictor, error) {
	ptr, err := artifact.ReadPointer(pointerPath)
	if err != nil {
		return nil, err
	}
	p, err := Load(ptr.ProcessedDir, ptr.ModelDir)
	if err != nil {
		return nil, apperr.Wrap(err, "run "+ptr.RunID)
	}
	p.RunID = ptr.RunID
	return p, nil
}

// Predict classifies rec.
func (p *Predictor) Predict(rec features.RawRecord) (*Prediction, error) {
	v, err := p.transformer.Transform(rec)
	if err != nil {
		return nil, err
	}
	idx, probs, err := p.model.Predict(v)
	if err != nil {
		return nil, err
	}
	label, err := p.transformer.Encoders.Efficiency.Decode(idx)
	if err != nil {
		return nil, err
	}

	out := &Prediction{
		Label:         label,
		ClassIndex:    idx,
		Probabilities: make(map[string]float64, len(probs)),
		RunID:         p.RunID,
	}
	for i, prob := range probs {
		out.Probabilities[p.transformer.Encoders.Efficiency.Classes[i]] = prob
	}
	return out, nil
}

// PredictFields classifies a record given as named fields.
func (p *Predictor) PredictFields(fields map[string]string) (*Prediction, error) {
	rec, err := features.RecordFromFields(fields)
	if err != nil {
		return nil, err
	}
	return p.Predict(rec)
}

// Schema describes the inputs a client must send.
type Schema struct {
	Features       []string           `json:"features"`
	OperationModes []string           `json:"operation_modes"`
	Labels         []string           `json:"labels"`
	Defaults       map[string]float64 `json:"defaults"`
}

// Schema returns the input description. Numeric defaults are the training
// means; calendar defaults come from now.
func (p *Predictor) Schema(now time.Time) Schema {
	enc := p.transformer.Encoders
	sc := p.transformer.Scaler

	defaults := make(map[string]float64, len(features.SensorColumns)+4)
	for j, name := range sc.Features {
		defaults[name] = sc.Mean[j]
	}
	delete(defaults, features.ColOperationMode)
	defaults[features.ColYear] = float64(now.Year())
	defaults[features.ColMonth] = float64(now.Month())
	defaults[features.ColDay] = float64(now.Day())
	defaults[features.ColHour] = float64(now.Hour())

	return Schema{
		Features:       append([]string(nil), features.Names...),
		OperationModes: append([]string(nil), enc.OperationMode.Classes...),
		Labels:         append([]string(nil), enc.Efficiency.Classes...),
		Defaults:       defaults,
	}
}

// Info describes the loaded model.
type Info struct {
	RunID        string    `json:"run_id"`
	ProcessedDir string    `json:"processed_dir"`
	ModelDir     string    `json:"model_dir"`
	LoadedAt     time.Time `json:"loaded_at"`
	Classes      []string  `json:"classes"`
	Features     []string  `json:"features"`
	Iterations   int       `json:"iterations"`
	Converged    bool      `json:"converged"`
	C            float64   `json:"c"`
	TrainSamples int       `json:"train_samples"`
}

// Info returns metadata about the loaded model.
func (p *Predictor) Info() Info {
	return Info{
		RunID:        p.RunID,
		ProcessedDir: p.ProcessedDir,
		ModelDir:     p.ModelDir,
		LoadedAt:     p.LoadedAt,
		Classes:      append([]string(nil), p.model.Classes...),
		Features:     append([]string(nil), p.model.Features...),
		Iterations:   p.model.Iterations,
		Converged:    p.model.Converged,
		C:            p.model.C,
		TrainSamples: p.transformer.Scaler.Samples,
	}
}
