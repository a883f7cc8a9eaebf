package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/mailflow/internal/domain"
	"github.com/ignite/mailflow/internal/service/reconcile"
)

// SubscriberRepo implements reconcile.SubscriberStore and
// reconcile.TargetDirectory.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

const subscriberColumns = `
	id, email, COALESCE(email_hash,''), status,
	COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(company,''),
	COALESCE(phone,''), COALESCE(location,''),
	group_ids, segment_ids, deliverability_result, created_at, updated_at`

func scanSubscriber(row interface{ Scan(...interface{}) error }) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := row.Scan(
		&s.ID, &s.Email, &s.EmailHash, &s.Status,
		&s.FirstName, &s.LastName, &s.Company, &s.Phone, &s.Location,
		pq.Array(&s.GroupIDs), pq.Array(&s.SegmentIDs),
		&s.DeliverabilityResult, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM mailing_subscribers
		WHERE email = $1
	`, email))
	if err == sql.ErrNoRows {
		return nil, reconcile.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailing_subscribers (
			id, email, email_hash, status,
			first_name, last_name, company, phone, location,
			group_ids, segment_ids, deliverability_result,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`, s.ID, s.Email, s.EmailHash, s.Status,
		s.FirstName, s.LastName, s.Company, s.Phone, s.Location,
		pq.Array(s.GroupIDs), pq.Array(s.SegmentIDs), s.DeliverabilityResult)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

func (r *SubscriberRepo) Update(ctx context.Context, s *domain.Subscriber) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE mailing_subscribers
		SET status = $2,
			first_name = $3, last_name = $4, company = $5,
			phone = $6, location = $7,
			group_ids = $8, segment_ids = $9,
			deliverability_result = $10,
			updated_at = NOW()
		WHERE id = $1
	`, s.ID, s.Status,
		s.FirstName, s.LastName, s.Company, s.Phone, s.Location,
		pq.Array(s.GroupIDs), pq.Array(s.SegmentIDs), s.DeliverabilityResult)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return reconcile.ErrSubscriberNotFound
	}
	return nil
}

func (r *SubscriberRepo) GroupExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM mailing_groups WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group: %w", err)
	}
	return exists, nil
}

func (r *SubscriberRepo) SegmentExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM mailing_segments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check segment: %w", err)
	}
	return exists, nil
}
