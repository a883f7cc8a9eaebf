package reconcile

import (
	"context"

	"github.com/ignite/mailflow/internal/domain"
)

// OracleResult is the verdict the validation oracle returns for one row.
type OracleResult struct {
	// Score is a 0-100 quality/deliverability score.
	Score int

	// CanonicalEmail is the normalized (lower-cased, trimmed) address, or
	// empty when no usable email could be extracted.
	CanonicalEmail string

	Classification domain.Classification
}

// Oracle scores raw rows. The heuristics behind the score are out of scope
// here; implementations may call an external verification provider.
type Oracle interface {
	Score(ctx context.Context, row domain.ImportRow) (OracleResult, error)
}

// ImportStore provides access to import jobs, their rows, and persisted
// per-row results. Implementations must be safe for concurrent use.
type ImportStore interface {
	// GetJob returns the job config. Returns ErrJobNotFound if missing.
	GetJob(ctx context.Context, jobID string) (*domain.ImportJob, error)

	// Rows returns up to limit rows of a job starting at offset, ordered by
	// row number. An empty slice means the job is exhausted.
	Rows(ctx context.Context, jobID string, offset, limit int) ([]domain.ImportRow, error)

	// SaveResult persists one row outcome. Results are write-once.
	SaveResult(ctx context.Context, r *domain.ImportRowResult) error

	// Statistics aggregates persisted results for a job.
	Statistics(ctx context.Context, jobID string) (*domain.ImportStatistics, error)
}

// SubscriberStore is the authoritative subscriber record, keyed by canonical
// email. Create must enforce the unique-email invariant.
type SubscriberStore interface {
	// GetByEmail looks up by canonical email. Returns ErrSubscriberNotFound
	// if no subscriber has that address.
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	Create(ctx context.Context, s *domain.Subscriber) error
	Update(ctx context.Context, s *domain.Subscriber) error
}

// TargetDirectory answers existence checks for groups and segments.
type TargetDirectory interface {
	GroupExists(ctx context.Context, id string) (bool, error)
	SegmentExists(ctx context.Context, id string) (bool, error)
}

// TargetValidation is the outcome of filtering caller-supplied group and
// segment ids down to ones that exist. Mismatches are reported as errors
// rather than failing the call; the caller decides whether a partial set is
// acceptable.
type TargetValidation struct {
	ValidGroups   []string `json:"valid_groups"`
	ValidSegments []string `json:"valid_segments"`
	Errors        []string `json:"errors"`
}
