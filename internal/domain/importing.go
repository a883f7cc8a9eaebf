package domain

import "time"

// DuplicatePolicy is how an import job treats a row whose email already
// exists in the store. It is a closed set; anything else is a job
// configuration error.
type DuplicatePolicy string

const (
	DuplicateSkip    DuplicatePolicy = "skip"
	DuplicateUpdate  DuplicatePolicy = "update"
	DuplicateReplace DuplicatePolicy = "replace"
)

// Valid reports whether p is one of the known policies.
func (p DuplicatePolicy) Valid() bool {
	switch p {
	case DuplicateSkip, DuplicateUpdate, DuplicateReplace:
		return true
	}
	return false
}

// ImportJob identifies one bulk-import run. Immutable once created.
type ImportJob struct {
	ID string `json:"id" db:"id"`

	// ColumnMapping maps source columns to subscriber fields
	// (e.g. "First Name" -> "first_name"). Columns not present in the
	// mapping are dropped during reconciliation.
	ColumnMapping map[string]string `json:"column_mapping" db:"column_mapping"`

	DuplicatePolicy DuplicatePolicy `json:"duplicate_policy" db:"duplicate_policy"`

	// ValidationThreshold is the minimum acceptable oracle score (0-100).
	// A row scoring exactly the threshold is accepted.
	ValidationThreshold int `json:"validation_threshold" db:"validation_threshold"`

	TargetGroupIDs   []string `json:"target_group_ids" db:"target_group_ids"`
	TargetSegmentIDs []string `json:"target_segment_ids" db:"target_segment_ids"`

	Filename  string    `json:"filename" db:"filename"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ImportRow is one raw row belonging to a job, as produced by the upload
// stage. Payload keys are source column names.
type ImportRow struct {
	JobID     string            `json:"job_id" db:"job_id"`
	RowNumber int               `json:"row_number" db:"row_number"`
	Payload   map[string]string `json:"payload" db:"payload"`
}

// Classification buckets an oracle verdict for status derivation.
type Classification string

const (
	ClassificationValid   Classification = "valid"
	ClassificationRisky   Classification = "risky"
	ClassificationInvalid Classification = "invalid"
)

// ImportAction is the final action taken for a row.
type ImportAction string

const (
	ActionCreated ImportAction = "created"
	ActionUpdated ImportAction = "updated"
	ActionSkipped ImportAction = "skipped"
	ActionFailed  ImportAction = "failed"
)

// ImportRowResult records one row's outcome. Written once by the reconciler,
// immutable thereafter; read later for statistics and audit.
type ImportRowResult struct {
	ID             string            `json:"id" db:"id"`
	JobID          string            `json:"job_id" db:"job_id"`
	RowNumber      int               `json:"row_number" db:"row_number"`
	Payload        map[string]string `json:"payload" db:"payload"`
	Score          int               `json:"score" db:"score"`
	CanonicalEmail *string           `json:"canonical_email" db:"canonical_email"`
	Classification Classification    `json:"classification" db:"classification"`
	Action         ImportAction      `json:"action" db:"action"`
	SubscriberID   *string           `json:"subscriber_id" db:"subscriber_id"`
	Error          *string           `json:"error" db:"error"`
	ProcessedAt    time.Time         `json:"processed_at" db:"processed_at"`
}

// BatchImportSummary aggregates counters for one import job run. Derived,
// not persisted: computed once a job's batches finish.
type BatchImportSummary struct {
	TotalProcessed int      `json:"total_processed"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	Skipped        int      `json:"skipped"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors,omitempty"`
}

// ImportStatistics are read-only aggregates over persisted row results,
// used for progress reporting while a long job is still running.
type ImportStatistics struct {
	JobID          string  `json:"job_id"`
	TotalProcessed int     `json:"total_processed"`
	Created        int     `json:"created"`
	Updated        int     `json:"updated"`
	Skipped        int     `json:"skipped"`
	Failed         int     `json:"failed"`
	Valid          int     `json:"valid"`
	Risky          int     `json:"risky"`
	Invalid        int     `json:"invalid"`
	AverageScore   float64 `json:"average_score"`
}
