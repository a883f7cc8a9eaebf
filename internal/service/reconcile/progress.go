package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailflow/internal/domain"
)

// ProgressTTL is how long a job's progress snapshot survives in Redis after
// the last update.
const ProgressTTL = 24 * time.Hour

// ImportProgress is the snapshot published to Redis after every batch so the
// surrounding application can poll a long job without hitting Postgres.
type ImportProgress struct {
	JobID     string    `json:"job_id"`
	Processed int       `json:"processed"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	UpdatedAt time.Time `json:"updated_at"`
}

func progressKey(jobID string) string {
	return fmt.Sprintf("import:progress:%s", jobID)
}

// publishProgress writes a snapshot to Redis. Best-effort: a missing or
// unreachable Redis never affects the import itself.
func (s *Service) publishProgress(ctx context.Context, jobID string, summary *domain.BatchImportSummary) {
	if s.redisClient == nil {
		return
	}

	snapshot := ImportProgress{
		JobID:     jobID,
		Processed: summary.TotalProcessed,
		Created:   summary.Created,
		Updated:   summary.Updated,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		UpdatedAt: time.Now(),
	}
	data, _ := json.Marshal(snapshot)
	s.redisClient.Set(ctx, progressKey(jobID), data, ProgressTTL)
}

// GetProgress reads the latest snapshot for a job. Returns nil without error
// when no snapshot exists (job not started, or snapshot expired).
func (s *Service) GetProgress(ctx context.Context, jobID string) (*ImportProgress, error) {
	if s.redisClient == nil {
		return nil, nil
	}

	data, err := s.redisClient.Get(ctx, progressKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p ImportProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
