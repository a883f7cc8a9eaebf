package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/mailflow/internal/domain"
	"github.com/ignite/mailflow/internal/service/schedule"
)

// CampaignRepo implements schedule.Repository against PostgreSQL. Every
// conditional transition is a single UPDATE guarded by the current status,
// which gives the compare-and-set semantics the dispatcher's claim needs.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `
	id, name, COALESCE(subject,''), COALESCE(from_name,''), COALESCE(from_email,''),
	COALESCE(html_content,''), COALESCE(plain_content,''),
	status, scheduled_at, last_error, started_at, completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.FromName, &c.FromEmail,
		&c.HTMLContent, &c.PlainContent,
		&c.Status, &c.ScheduledAt, &c.LastError, &c.StartedAt, &c.CompletedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM mailing_campaigns
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) Schedule(ctx context.Context, id string, at time.Time, from ...domain.CampaignStatus) (*domain.Campaign, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE mailing_campaigns
		SET status = 'scheduled', scheduled_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, at, pq.Array(states))
	if err != nil {
		return nil, fmt.Errorf("schedule campaign: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return nil, r.transitionError(ctx, id)
	}
	return r.Get(ctx, id)
}

func (r *CampaignRepo) Cancel(ctx context.Context, id string) (*domain.Campaign, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE mailing_campaigns
		SET status = 'draft', scheduled_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`, id)
	if err != nil {
		return nil, fmt.Errorf("cancel campaign schedule: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return nil, r.transitionError(ctx, id)
	}
	return r.Get(ctx, id)
}

// transitionError decides why a conditional update touched no rows: either
// the campaign doesn't exist, or its status disallowed the transition.
func (r *CampaignRepo) transitionError(ctx context.Context, id string) error {
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM mailing_campaigns WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return schedule.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect campaign state: %w", err)
	}
	return fmt.Errorf("%w (current status: %s)", schedule.ErrInvalidState, status)
}

func (r *CampaignRepo) ListScheduled(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM mailing_campaigns
		WHERE status = 'scheduled'
		ORDER BY scheduled_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Stats(ctx context.Context) (*domain.SchedulingStats, error) {
	s := &domain.SchedulingStats{}
	var next sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			MIN(scheduled_at) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'sending'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM mailing_campaigns
	`).Scan(&s.PendingCount, &next, &s.SendingCount, &s.SentCount, &s.FailedCount)
	if err != nil {
		return nil, fmt.Errorf("scheduling stats: %w", err)
	}
	if next.Valid {
		s.NextDispatchAt = &next.Time
	}
	return s, nil
}
