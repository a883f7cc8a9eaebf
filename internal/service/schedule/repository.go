package schedule

import (
	"context"
	"time"

	"github.com/ignite/mailflow/internal/domain"
)

// Repository defines the data access contract for the schedule registry.
// Implementations must be safe for concurrent use, and every conditional
// transition must be atomic at the row level (compare-and-set on status):
// that atomicity is what the dispatcher's claim relies on.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// Schedule sets status to scheduled with the given dispatch time, but
	// only if the stored status is one of from. Returns ErrInvalidState if
	// the condition fails, ErrNotFound if the campaign doesn't exist. The
	// scheduled_at replacement is atomic: a concurrent dispatcher tick sees
	// either the old time or the new one, never a cleared value.
	Schedule(ctx context.Context, id string, at time.Time, from ...domain.CampaignStatus) (*domain.Campaign, error)

	// Cancel transitions scheduled -> draft and clears scheduled_at.
	// Returns ErrInvalidState if the campaign is not currently scheduled.
	Cancel(ctx context.Context, id string) (*domain.Campaign, error)

	// ListScheduled returns all scheduled campaigns ordered by scheduled_at
	// ascending.
	ListScheduled(ctx context.Context) ([]domain.Campaign, error)

	// Stats returns registry-wide counters for operational visibility.
	Stats(ctx context.Context) (*domain.SchedulingStats, error)
}
