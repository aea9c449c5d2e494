package stats

import "fmt"

// ClassMetrics holds one row of a classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision" cbor:"precision"`
	Recall    float64 `json:"recall" cbor:"recall"`
	F1        float64 `json:"f1" cbor:"f1"`
	Support   int     `json:"support" cbor:"support"`
}

// Report summarizes predictions against true labels for classes [0, k).
// Weighted averages weight each class by its support in the true labels;
// an undefined precision or recall (0/0) counts as 0.
type Report struct {
	Accuracy          float64        `json:"accuracy" cbor:"accuracy"`
	WeightedPrecision float64        `json:"weighted_precision" cbor:"weighted_precision"`
	WeightedRecall    float64        `json:"weighted_recall" cbor:"weighted_recall"`
	WeightedF1        float64        `json:"weighted_f1" cbor:"weighted_f1"`
	PerClass          []ClassMetrics `json:"per_class" cbor:"per_class"`
	// Confusion[i][j] counts samples of true class i predicted as j.
	Confusion [][]int `json:"confusion" cbor:"confusion"`
	Samples   int     `json:"samples" cbor:"samples"`
}

// ConfusionMatrix counts (true, predicted) pairs.
func ConfusionMatrix(trueLabels, predLabels []int, k int) ([][]int, error) {
	if len(trueLabels) != len(predLabels) {
		return nil, fmt.Errorf("label length mismatch: %d true vs %d predicted", len(trueLabels), len(predLabels))
	}
	cm := make([][]int, k)
	for i := range cm {
		cm[i] = make([]int, k)
	}
	for i, t := range trueLabels {
		p := predLabels[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return nil, fmt.Errorf("label out of range at %d: true=%d predicted=%d classes=%d", i, t, p, k)
		}
		cm[t][p]++
	}
	return cm, nil
}

// Classify computes accuracy and the per-class and weighted
// precision, recall and F1.
func Classify(trueLabels, predLabels []int, k int) (*Report, error) {
	cm, err := ConfusionMatrix(trueLabels, predLabels, k)
	if err != nil {
		return nil, err
	}

	r := &Report{
		PerClass:  make([]ClassMetrics, k),
		Confusion: cm,
		Samples:   len(trueLabels),
	}
	if r.Samples == 0 {
		return r, nil
	}

	correct := 0
	for c := 0; c < k; c++ {
		correct += cm[c][c]

		support, predicted := 0, 0
		for j := 0; j < k; j++ {
			support += cm[c][j]
			predicted += cm[j][c]
		}

		m := ClassMetrics{Support: support}
		if predicted > 0 {
			m.Precision = float64(cm[c][c]) / float64(predicted)
		}
		if support > 0 {
			m.Recall = float64(cm[c][c]) / float64(support)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.PerClass[c] = m

		w := float64(support) / float64(r.Samples)
		r.WeightedPrecision += w * m.Precision
		r.WeightedRecall += w * m.Recall
		r.WeightedF1 += w * m.F1
	}
	r.Accuracy = float64(correct) / float64(r.Samples)

	return r, nil
}
