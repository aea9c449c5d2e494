package stats

import (
	"math"
)

// ShannonEntropy calculates the Shannon entropy of a probability distribution
// values: frequency counts or probabilities
// Returns entropy in bits (log base 2)
func ShannonEntropy(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	// Normalize to probabilities
	sum := Sum(values)
	if sum == 0 {
		return 0
	}

	var entropy float64
	for _, v := range values {
		if v > 0 {
			p := v / sum
			entropy -= p * math.Log2(p)
		}
	}

	return entropy
}

// NormalizedEntropy calculates the normalized Shannon entropy (0 to 1)
// Divides by log2(n) where n is the number of categories.
// 1 means perfectly balanced classes.
func NormalizedEntropy(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	entropy := ShannonEntropy(values)
	maxEntropy := math.Log2(float64(len(values)))

	if maxEntropy == 0 {
		return 0
	}

	return entropy / maxEntropy
}

// LogLoss is the mean negative log-likelihood of the true labels under probs.
// Probabilities are clipped to [eps, 1-eps].
func LogLoss(trueLabels []int, probs [][]float64) float64 {
	const eps = 1e-15
	if len(trueLabels) == 0 {
		return 0
	}

	var total float64
	for i, y := range trueLabels {
		p := probs[i][y]
		p = math.Max(eps, math.Min(1-eps, p))
		total -= math.Log(p)
	}
	return total / float64(len(trueLabels))
}
