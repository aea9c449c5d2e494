package features

import (
	"slices"

	"github.com/jengzang/machine-efficiency-go/internal/stats"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Scaler standardizes features with per-column mean and population standard
// deviation. A column with zero variance keeps Std 1 so it maps to 0.
type Scaler struct {
	Features []string  `cbor:"features"`
	Mean     []float64 `cbor:"mean"`
	Std      []float64 `cbor:"std"`
	Samples  int       `cbor:"samples"`
}

// FitScaler learns scaling parameters from m. Only training rows should be
// passed here.
func FitScaler(m Matrix) (*Scaler, error) {
	if len(m) == 0 {
		return nil, apperr.New(apperr.InsufficientData, "cannot fit scaler on zero rows")
	}
	if err := CheckWidth("scaler input", m); err != nil {
		return nil, err
	}

	s := &Scaler{
		Features: slices.Clone(Names),
		Mean:     make([]float64, Count),
		Std:      make([]float64, Count),
		Samples:  len(m),
	}
	for j := 0; j < Count; j++ {
		col := m.Column(j)
		s.Mean[j] = stats.Mean(col)
		std := stats.PopStdDev(col)
		if std == 0 {
			std = 1
		}
		s.Std[j] = std
	}
	return s, nil
}

// Transform returns (v - mean) / std.
func (s *Scaler) Transform(v Vector) (Vector, error) {
	if err := s.check(v); err != nil {
		return nil, err
	}
	out := make(Vector, len(v))
	for j, x := range v {
		out[j] = (x - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// Inverse undoes Transform.
func (s *Scaler) Inverse(v Vector) (Vector, error) {
	if err := s.check(v); err != nil {
		return nil, err
	}
	out := make(Vector, len(v))
	for j, x := range v {
		out[j] = x*s.Std[j] + s.Mean[j]
	}
	return out, nil
}

// TransformMatrix scales every row of m.
func (s *Scaler) TransformMatrix(m Matrix) (Matrix, error) {
	out := make(Matrix, len(m))
	for i, row := range m {
		v, err := s.Transform(row)
		if err != nil {
			return nil, apperr.Wrap(err, rowNote(i))
		}
		out[i] = v
	}
	return out, nil
}

// Validate checks a loaded scaler against the canonical schema.
func (s *Scaler) Validate() error {
	if err := CheckNames("scaler", s.Features); err != nil {
		return err
	}
	if len(s.Mean) != Count || len(s.Std) != Count {
		return apperr.New(apperr.ShapeMismatch,
			"scaler has %d means and %d deviations, expected %d", len(s.Mean), len(s.Std), Count)
	}
	for j, std := range s.Std {
		if std <= 0 {
			return apperr.New(apperr.ArtifactInvalid, "scaler std for %s is %v", s.Features[j], std)
		}
	}
	return nil
}

func (s *Scaler) check(v Vector) error {
	if len(v) != len(s.Mean) {
		return apperr.New(apperr.ShapeMismatch,
			"vector has %d features, scaler expects %d", len(v), len(s.Mean))
	}
	return nil
}
