package features

import (
	"slices"
	"strconv"

	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// LabelEncoder maps category strings to contiguous indexes starting at 0.
// Classes[i] is the category encoded as i.
type LabelEncoder struct {
	Column  string   `cbor:"column"`
	Classes []string `cbor:"classes"`
}

// NewLabelEncoder returns an encoder with a fixed vocabulary.
func NewLabelEncoder(column string, classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "%s: empty vocabulary", column)
	}
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		if seen[c] {
			return nil, apperr.New(apperr.InvalidInput, "%s: duplicate category %q", column, c)
		}
		seen[c] = true
	}
	return &LabelEncoder{Column: column, Classes: slices.Clone(classes)}, nil
}

// FitLabelEncoder learns the sorted set of observed values.
func FitLabelEncoder(column string, values []string) (*LabelEncoder, error) {
	classes := slices.Clone(values)
	slices.Sort(classes)
	classes = slices.Compact(classes)
	if len(classes) == 0 {
		return nil, apperr.New(apperr.InsufficientData, "%s: no values to fit", column)
	}
	return &LabelEncoder{Column: column, Classes: classes}, nil
}

// Encode returns the index of value, or UnknownCategory.
func (e *LabelEncoder) Encode(value string) (int, error) {
	if i := slices.Index(e.Classes, value); i >= 0 {
		return i, nil
	}
	return -1, apperr.New(apperr.UnknownCategory,
		"unknown %s %q (known: %v)", e.Column, value, e.Classes)
}

// Decode returns the category encoded as idx.
func (e *LabelEncoder) Decode(idx int) (string, error) {
	if idx < 0 || idx >= len(e.Classes) {
		return "", apperr.New(apperr.ShapeMismatch,
			"%s index %d out of range [0, %d)", e.Column, idx, len(e.Classes))
	}
	return e.Classes[idx], nil
}

// Mapping returns category -> index, for logging.
func (e *LabelEncoder) Mapping() map[string]int {
	m := make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		m[c] = i
	}
	return m
}

// Vocabulary fixes encoder classes up front. Nil or empty slices are fitted
// from the data.
type Vocabulary struct {
	OperationModes   []string
	EfficiencyLabels []string
}

// Encoders is the persisted pair of categorical encoders.
type Encoders struct {
	OperationMode *LabelEncoder `cbor:"operation_mode"`
	Efficiency    *LabelEncoder `cbor:"efficiency"`
}

func encoderFor(column string, fixed, observed []string) (*LabelEncoder, error) {
	if len(fixed) > 0 {
		return NewLabelEncoder(column, fixed)
	}
	return FitLabelEncoder(column, observed)
}

// Fit builds the encoders from records and returns the unscaled feature
// matrix with the encoded target. Any malformed timestamp or out of
// vocabulary category aborts the whole batch.
func Fit(records []RawRecord, vocab Vocabulary) (*Encoders, Matrix, []int, error) {
	if len(records) == 0 {
		return nil, nil, nil, apperr.New(apperr.InsufficientData, "no records to fit")
	}

	modes := make([]string, len(records))
	targets := make([]string, len(records))
	for i, r := range records {
		modes[i] = r.OperationMode
		targets[i] = r.EfficiencyStatus
	}

	modeEnc, err := encoderFor(ColOperationMode, vocab.OperationModes, modes)
	if err != nil {
		return nil, nil, nil, err
	}
	targetEnc, err := encoderFor(ColEfficiencyStatus, vocab.EfficiencyLabels, targets)
	if err != nil {
		return nil, nil, nil, err
	}
	enc := &Encoders{OperationMode: modeEnc, Efficiency: targetEnc}

	X := make(Matrix, len(records))
	y := make([]int, len(records))
	for i, r := range records {
		v, err := enc.Vector(r)
		if err != nil {
			return nil, nil, nil, apperr.Wrap(err, rowNote(i))
		}
		label, err := targetEnc.Encode(r.EfficiencyStatus)
		if err != nil {
			return nil, nil, nil, apperr.Wrap(err, rowNote(i))
		}
		X[i] = v
		y[i] = label
	}
	return enc, X, y, nil
}

// Vector encodes rec without scaling, in Names order.
func (e *Encoders) Vector(rec RawRecord) (Vector, error) {
	cal, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		return nil, err
	}
	mode, err := e.OperationMode.Encode(rec.OperationMode)
	if err != nil {
		return nil, err
	}

	v := make(Vector, 0, Count)
	v = append(v, float64(mode))
	v = append(v, rec.Sensors[:]...)
	v = append(v, float64(cal.Year), float64(cal.Month), float64(cal.Day), float64(cal.Hour))
	return v, nil
}

func rowNote(i int) string {
	// +2: header line and 1-based numbering
	return "row " + strconv.Itoa(i+2)
}
