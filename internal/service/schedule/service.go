package schedule

import (
	"context"
	"log"
	"time"

	"github.com/ignite/mailflow/internal/domain"
)

// Service implements campaign scheduling business logic. All public methods
// are safe for concurrent use if the underlying repository is
// concurrency-safe.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a schedule service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the service's clock. Tests use this to pin "now".
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// Schedule moves a draft campaign to scheduled at the given time. Calling it
// on an already-scheduled campaign replaces the time (a no-op reschedule).
// The time must be strictly in the future at call time.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) (*domain.Campaign, error) {
	if !at.After(s.now()) {
		return nil, ErrInvalidScheduleTime
	}

	c, err := s.repo.Schedule(ctx, id, at, domain.CampaignDraft, domain.CampaignScheduled)
	if err != nil {
		return nil, err
	}

	log.Printf("[schedule.Service] Campaign %s scheduled for %s", id, at.Format(time.RFC3339))
	return c, nil
}

// Cancel returns a scheduled campaign to draft and clears its dispatch time.
// Cancelling anything that is not currently scheduled fails with
// ErrInvalidState, including a second cancel of the same campaign: callers
// holding stale state must notice, not silently succeed. In particular a
// campaign the dispatcher has already claimed (sending) is past the point of
// no return.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Printf("[schedule.Service] Campaign %s schedule cancelled", id)
	return c, nil
}

// Reschedule atomically replaces the dispatch time of a scheduled campaign.
// Unlike Schedule it refuses drafts: there is nothing to reschedule.
func (s *Service) Reschedule(ctx context.Context, id string, at time.Time) (*domain.Campaign, error) {
	if !at.After(s.now()) {
		return nil, ErrInvalidScheduleTime
	}

	c, err := s.repo.Schedule(ctx, id, at, domain.CampaignScheduled)
	if err != nil {
		return nil, err
	}

	log.Printf("[schedule.Service] Campaign %s rescheduled to %s", id, at.Format(time.RFC3339))
	return c, nil
}

// ListScheduled returns all campaigns awaiting dispatch, earliest first.
func (s *Service) ListScheduled(ctx context.Context) ([]domain.Campaign, error) {
	return s.repo.ListScheduled(ctx)
}

// Stats returns registry counters for dashboards and health checks.
func (s *Service) Stats(ctx context.Context) (*domain.SchedulingStats, error) {
	return s.repo.Stats(ctx)
}
