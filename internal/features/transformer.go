package features

import "github.com/jengzang/machine-efficiency-go/pkg/apperr"

// Transformer replays the fit-time transformation on single records.
// It is read-only and safe for concurrent use.
type Transformer struct {
	Encoders *Encoders
	Scaler   *Scaler
}

// NewTransformer checks that the encoders and scaler belong together.
func NewTransformer(enc *Encoders, sc *Scaler) (*Transformer, error) {
	if enc == nil || enc.OperationMode == nil || enc.Efficiency == nil {
		return nil, apperr.New(apperr.ArtifactInvalid, "encoders are incomplete")
	}
	if sc == nil {
		return nil, apperr.New(apperr.ArtifactInvalid, "scaler is missing")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &Transformer{Encoders: enc, Scaler: sc}, nil
}

// Transform encodes and scales rec.
func (t *Transformer) Transform(rec RawRecord) (Vector, error) {
	v, err := t.Encoders.Vector(rec)
	if err != nil {
		return nil, err
	}
	return t.Scaler.Transform(v)
}
