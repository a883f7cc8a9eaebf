package schedule_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ignite/mailflow/internal/domain"
	"github.com/ignite/mailflow/internal/service/schedule"
)

// memRepo is an in-memory schedule repository for unit testing. Transitions
// are guarded by the same status conditions the SQL implementation uses.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign // keyed by id
}

func newMemRepo() *memRepo {
	return &memRepo{campaigns: make(map[string]*domain.Campaign)}
}

func (m *memRepo) add(c domain.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := c
	m.campaigns[c.ID] = &cp
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) Schedule(_ context.Context, id string, at time.Time, from ...domain.CampaignStatus) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	allowed := false
	for _, s := range from {
		if c.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, schedule.ErrInvalidState
	}
	c.Status = domain.CampaignScheduled
	c.ScheduledAt = &at
	cp := *c
	return &cp, nil
}

func (m *memRepo) Cancel(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	if c.Status != domain.CampaignScheduled {
		return nil, schedule.ErrInvalidState
	}
	c.Status = domain.CampaignDraft
	c.ScheduledAt = nil
	cp := *c
	return &cp, nil
}

func (m *memRepo) ListScheduled(_ context.Context) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignScheduled {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(*out[j].ScheduledAt)
	})
	return out, nil
}

func (m *memRepo) Stats(_ context.Context) (*domain.SchedulingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &domain.SchedulingStats{}
	for _, c := range m.campaigns {
		switch c.Status {
		case domain.CampaignScheduled:
			s.PendingCount++
			if s.NextDispatchAt == nil || c.ScheduledAt.Before(*s.NextDispatchAt) {
				at := *c.ScheduledAt
				s.NextDispatchAt = &at
			}
		case domain.CampaignSending:
			s.SendingCount++
		case domain.CampaignSent:
			s.SentCount++
		case domain.CampaignFailed:
			s.FailedCount++
		}
	}
	return s, nil
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(repo *memRepo) *schedule.Service {
	svc := schedule.NewService(repo)
	svc.SetClock(func() time.Time { return testNow })
	return svc
}

func TestSchedule_Draft(t *testing.T) {
	repo := newMemRepo()
	repo.add(domain.Campaign{ID: "c1", Status: domain.CampaignDraft})
	svc := newTestService(repo)

	at := testNow.Add(time.Hour)
	c, err := svc.Schedule(context.Background(), "c1", at)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if c.Status != domain.CampaignScheduled {
		t.Errorf("status = %s, want scheduled", c.Status)
	}
	if c.ScheduledAt == nil || !c.ScheduledAt.Equal(at) {
		t.Errorf("ScheduledAt = %v, want %v", c.ScheduledAt, at)
	}
}

func TestSchedule_ReplacesExistingTime(t *testing.T) {
	repo := newMemRepo()
	repo.add(domain.Campaign{ID: "c1", Status: domain.CampaignDraft})
	svc := newTestService(repo)

	first := testNow.Add(time.Hour)
	if _, err := svc.Schedule(context.Background(), "c1", first); err != nil {
		t.Fatalf("first Schedule() error: %v", err)
	}

	second := testNow.Add(2 * time.Hour)
	c, err := svc.Schedule(context.Background(), "c1", second)
	if err != nil {
		t.Fatalf("second Schedule() error: %v", err)
	}
	if !c.ScheduledAt.Equal(second) {
		t.Errorf("ScheduledAt = %v, want %v", c.ScheduledAt, second)
	}
}

func TestSchedule_TimeNotInFuture(t *testing.T) {
	repo := newMemRepo()
	repo.add(domain.Campaign{ID: "c1", Status: domain.CampaignDraft})
	svc := newTestService(repo)

	for _, at := range []time.Time{testNow, testNow.Add(-time.Minute)} {
		if _, err := svc.Schedule(context.Background(), "c1", at); !errors.Is(err, schedule.ErrInvalidScheduleTime) {
			t.Errorf("Schedule(%v) error = %v, want ErrInvalidScheduleTime", at, err)
		}
	}
}

func TestSchedule_InvalidStates(t *testing.T) {
	repo := newMemRepo()
	repo.add(domain.Campaign{ID: "sending", Status: domain.CampaignSending})
	repo.add(domain.Campaign{ID: "sent", Status: domain.CampaignSent})
	repo.add(domain.Campaign{ID: "cancelled", Status: domain.CampaignCancelled})
	svc := newTestService(repo)

	for _, id := range []string{"sending", "sent", "cancelled"} {
		if _, err := svc.Schedule(context.Background(), id, testNow.Add(time.Hour)); !errors.Is(err, schedule.ErrInvalidState) {
			t.Errorf("Schedule(%s) error = %v, want ErrInvalidState", id, err)
		}
	}
}

func TestSchedule_NotFound(t *testing.T) {
	svc := newTestService(newMemRepo())
	if _, err := svc.Schedule(context.Background(), "missing", testNow.Add(time.Hour)); !errors.Is(err, schedule.ErrNotFound) {
		t.Errorf("Schedule() error = %v, want ErrNotFound", err)
	}
}

func TestCancel(t *testing.T) {
	repo := newMemRepo()
	at := testNow.Add(time.Hour)
	repo.add(domain.Campaign{ID: "c1", Status: domain.CampaignScheduled, ScheduledAt: &at})
	svc := newTestService(repo)

	c, err := svc.Cancel(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if c.Status != domain.CampaignDraft {
		t.Errorf("status = %s, want draft", c.Status)
	}
	if c.ScheduledAt != nil {
		t.Errorf("ScheduledAt = %v, want nil", c.ScheduledAt)
	}

	// A second cancel must fail loudly, not silently succeed.
	if _, err := svc.Cancel(context.Background(), "c1"); !errors.Is(err, schedule.ErrInvalidState) {
		t.Errorf("second Cancel() error = %v, want ErrInvalidState", err)
	}
}

func TestCancel_AfterDispatcherClaim(t *testing.T) {
	repo := newMemRepo()
	repo.add(domain.Campaign{ID: "c1", Status: domain.CampaignSending})
	svc := newTestService(repo)

	if _, err := svc.Cancel(context.Background(), "c1"); !errors.Is(err, schedule.ErrInvalidState) {
		t.Errorf("Cancel() error = %v, want ErrInvalidState", err)
	}
}

func TestReschedule(t *testing.T) {
	repo := newMemRepo()
	at := testNow.Add(time.Hour)
	repo.add(domain.Campaign{ID: "c1", Status: domain.CampaignScheduled, ScheduledAt: &at})
	repo.add(domain.Campaign{ID: "draft", Status: domain.CampaignDraft})
	svc := newTestService(repo)

	newAt := testNow.Add(3 * time.Hour)
	c, err := svc.Reschedule(context.Background(), "c1", newAt)
	if err != nil {
		t.Fatalf("Reschedule() error: %v", err)
	}
	if !c.ScheduledAt.Equal(newAt) {
		t.Errorf("ScheduledAt = %v, want %v", c.ScheduledAt, newAt)
	}

	// A draft has nothing to reschedule.
	if _, err := svc.Reschedule(context.Background(), "draft", newAt); !errors.Is(err, schedule.ErrInvalidState) {
		t.Errorf("Reschedule(draft) error = %v, want ErrInvalidState", err)
	}

	if _, err := svc.Reschedule(context.Background(), "c1", testNow.Add(-time.Hour)); !errors.Is(err, schedule.ErrInvalidScheduleTime) {
		t.Errorf("Reschedule(past) error = %v, want ErrInvalidScheduleTime", err)
	}
}

func TestListScheduled_Order(t *testing.T) {
	repo := newMemRepo()
	late := testNow.Add(3 * time.Hour)
	early := testNow.Add(time.Hour)
	repo.add(domain.Campaign{ID: "late", Status: domain.CampaignScheduled, ScheduledAt: &late})
	repo.add(domain.Campaign{ID: "early", Status: domain.CampaignScheduled, ScheduledAt: &early})
	repo.add(domain.Campaign{ID: "draft", Status: domain.CampaignDraft})
	svc := newTestService(repo)

	out, err := svc.ListScheduled(context.Background())
	if err != nil {
		t.Fatalf("ListScheduled() error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].ID != "early" || out[1].ID != "late" {
		t.Errorf("order = [%s %s], want [early late]", out[0].ID, out[1].ID)
	}
}

func TestStats(t *testing.T) {
	repo := newMemRepo()
	at := testNow.Add(time.Hour)
	repo.add(domain.Campaign{ID: "s1", Status: domain.CampaignScheduled, ScheduledAt: &at})
	repo.add(domain.Campaign{ID: "s2", Status: domain.CampaignSending})
	repo.add(domain.Campaign{ID: "s3", Status: domain.CampaignSent})
	repo.add(domain.Campaign{ID: "s4", Status: domain.CampaignFailed})
	svc := newTestService(repo)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.PendingCount != 1 || stats.SendingCount != 1 || stats.SentCount != 1 || stats.FailedCount != 1 {
		t.Errorf("stats = %+v, want one of each", stats)
	}
	if stats.NextDispatchAt == nil || !stats.NextDispatchAt.Equal(at) {
		t.Errorf("NextDispatchAt = %v, want %v", stats.NextDispatchAt, at)
	}
}
