package dataset

import (
	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/internal/stats"
)

// FeatureProfile describes one column of the encoded feature matrix.
type FeatureProfile struct {
	Name    string        `json:"name" cbor:"name"`
	Summary stats.Summary `json:"summary" cbor:"summary"`
	// TargetCorrelation is the Pearson correlation with the encoded label.
	TargetCorrelation float64 `json:"target_correlation" cbor:"target_correlation"`
}

// Profile summarizes a dataset before it is split.
type Profile struct {
	Rows        int              `json:"rows" cbor:"rows"`
	ClassCounts map[string]int   `json:"class_counts" cbor:"class_counts"`
	Balance     float64          `json:"balance" cbor:"balance"`
	Features    []FeatureProfile `json:"features" cbor:"features"`
}

// Describe profiles the unscaled matrix X with labels y named by classes.
// Balance is the normalized entropy of the class distribution: 1 when all
// classes are equally frequent.
func Describe(X features.Matrix, y []int, classes []string) *Profile {
	counts := stats.Counts(y, len(classes))

	p := &Profile{
		Rows:        len(X),
		ClassCounts: make(map[string]int, len(classes)),
		Features:    make([]FeatureProfile, 0, features.Count),
	}

	freq := make([]float64, len(counts))
	for i, c := range counts {
		p.ClassCounts[classes[i]] = c
		freq[i] = float64(c)
	}
	p.Balance = stats.NormalizedEntropy(freq)

	target := make([]float64, len(y))
	for i, l := range y {
		target[i] = float64(l)
	}

	for j, name := range features.Names {
		col := X.Column(j)
		p.Features = append(p.Features, FeatureProfile{
			Name:              name,
			Summary:           stats.Summarize(col),
			TargetCorrelation: stats.PearsonCorrelation(col, target),
		})
	}
	return p
}
