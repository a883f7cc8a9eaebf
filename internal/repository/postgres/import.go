package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/mailflow/internal/domain"
	"github.com/ignite/mailflow/internal/service/reconcile"
)

// ImportRepo implements reconcile.ImportStore. Column mappings and row
// payloads are stored as JSONB so the job definition round-trips without
// a schema change per source file layout.
type ImportRepo struct{ db *sql.DB }

// NewImportRepo creates a Postgres-backed import repository.
func NewImportRepo(db *sql.DB) *ImportRepo { return &ImportRepo{db: db} }

func (r *ImportRepo) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	job := &domain.ImportJob{}
	var mapping []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, column_mapping, duplicate_policy, validation_threshold,
			target_group_ids, target_segment_ids, COALESCE(filename,''), created_at
		FROM mailing_import_jobs
		WHERE id = $1
	`, id).Scan(&job.ID, &mapping, &job.DuplicatePolicy, &job.ValidationThreshold,
		pq.Array(&job.TargetGroupIDs), pq.Array(&job.TargetSegmentIDs),
		&job.Filename, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, reconcile.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &job.ColumnMapping); err != nil {
			return nil, fmt.Errorf("decode column mapping: %w", err)
		}
	}
	return job, nil
}

func (r *ImportRepo) Rows(ctx context.Context, jobID string, offset, limit int) ([]domain.ImportRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, row_number, payload
		FROM mailing_import_rows
		WHERE job_id = $1
		ORDER BY row_number ASC
		OFFSET $2 LIMIT $3
	`, jobID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list import rows: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportRow
	for rows.Next() {
		var row domain.ImportRow
		var payload []byte
		if err := rows.Scan(&row.JobID, &row.RowNumber, &payload); err != nil {
			return nil, fmt.Errorf("scan import row: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &row.Payload); err != nil {
				return nil, fmt.Errorf("decode row payload: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *ImportRepo) SaveResult(ctx context.Context, res *domain.ImportRowResult) error {
	payload, err := json.Marshal(res.Payload)
	if err != nil {
		return fmt.Errorf("encode row payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO mailing_import_results (
			id, job_id, row_number, payload, score, canonical_email,
			classification, action, subscriber_id, error, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (job_id, row_number) DO UPDATE SET
			score = EXCLUDED.score,
			canonical_email = EXCLUDED.canonical_email,
			classification = EXCLUDED.classification,
			action = EXCLUDED.action,
			subscriber_id = EXCLUDED.subscriber_id,
			error = EXCLUDED.error,
			processed_at = EXCLUDED.processed_at
	`, res.ID, res.JobID, res.RowNumber, payload, res.Score, res.CanonicalEmail,
		res.Classification, res.Action, res.SubscriberID, res.Error, res.ProcessedAt)
	if err != nil {
		return fmt.Errorf("save import result: %w", err)
	}
	return nil
}

func (r *ImportRepo) Statistics(ctx context.Context, jobID string) (*domain.ImportStatistics, error) {
	stats := &domain.ImportStatistics{JobID: jobID}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE action = 'created'),
			COUNT(*) FILTER (WHERE action = 'updated'),
			COUNT(*) FILTER (WHERE action = 'skipped'),
			COUNT(*) FILTER (WHERE action = 'failed'),
			COUNT(*) FILTER (WHERE classification = 'valid'),
			COUNT(*) FILTER (WHERE classification = 'risky'),
			COUNT(*) FILTER (WHERE classification = 'invalid'),
			COALESCE(AVG(score), 0)
		FROM mailing_import_results
		WHERE job_id = $1
	`, jobID).Scan(&stats.TotalProcessed, &stats.Created, &stats.Updated,
		&stats.Skipped, &stats.Failed,
		&stats.Valid, &stats.Risky, &stats.Invalid, &stats.AverageScore)
	if err != nil {
		return nil, fmt.Errorf("import statistics: %w", err)
	}
	return stats, nil
}
