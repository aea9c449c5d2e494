package models

// Evaluation is the stored headline of a training run's test-split report.
type Evaluation struct {
	RunID             string  `json:"run_id" db:"run_id"`
	Accuracy          float64 `json:"accuracy" db:"accuracy"`
	WeightedPrecision float64 `json:"weighted_precision" db:"weighted_precision"`
	WeightedRecall    float64 `json:"weighted_recall" db:"weighted_recall"`
	WeightedF1        float64 `json:"weighted_f1" db:"weighted_f1"`
	TestSamples       int     `json:"test_samples" db:"test_samples"`
	Iterations        int     `json:"iterations" db:"iterations"`
	Converged         bool    `json:"converged" db:"converged"`
	ReportJSON        string  `json:"report_json,omitempty" db:"report_json"` // full report
	CreatedAt         int64   `json:"created_at" db:"created_at"`
}
