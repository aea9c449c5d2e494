package models

// Run is one execution of one or more pipeline stages.
type Run struct {
	ID     string `json:"id" db:"id"`
	Kind   string `json:"kind" db:"kind"`     // prepare, train, promote, chain
	Stages string `json:"stages" db:"stages"` // comma separated stage names

	Status string `json:"status" db:"status"`

	// Artifact locations
	RawData      string `json:"raw_data,omitempty" db:"raw_data"`
	ProcessedDir string `json:"processed_dir,omitempty" db:"processed_dir"`
	ModelDir     string `json:"model_dir,omitempty" db:"model_dir"`

	StartTime int64 `json:"start_time,omitempty" db:"start_time"` // Unix timestamp
	EndTime   int64 `json:"end_time,omitempty" db:"end_time"`     // Unix timestamp

	// Results
	ResultSummary string `json:"result_summary,omitempty" db:"result_summary"` // JSON object
	ErrorKind     string `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage  string `json:"error_message,omitempty" db:"error_message"`

	PromotedAt int64 `json:"promoted_at,omitempty" db:"promoted_at"` // Unix timestamp, 0 if never served

	CreatedBy string `json:"created_by,omitempty" db:"created_by"` // cli, api
	CreatedAt int64  `json:"created_at" db:"created_at"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
}

// Run kinds
const (
	RunKindPrepare = "prepare"
	RunKindTrain   = "train"
	RunKindPromote = "promote"
	RunKindChain   = "chain"
)

// Run status constants
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
