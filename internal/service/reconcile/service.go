package reconcile

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailflow/internal/domain"
)

const (
	// DefaultBatchSize bounds memory and transaction size per batch.
	DefaultBatchSize = 100

	// DefaultConcurrency is the worker pool width within a batch. Rows for
	// the same email are still serialized through per-email locks.
	DefaultConcurrency = 8
)

// Service implements import reconciliation. All public methods are safe for
// concurrent use; two rows for the same canonical email are never reconciled
// concurrently, which is what prevents a duplicate-create race.
type Service struct {
	imports     ImportStore
	subscribers SubscriberStore
	targets     TargetDirectory
	oracle      Oracle

	redisClient *redis.Client // optional; nil disables progress snapshots

	batchSize   int
	concurrency int
	locks       emailLocks
}

// NewService creates a reconciler over the given stores and oracle.
func NewService(imports ImportStore, subscribers SubscriberStore, targets TargetDirectory, oracle Oracle) *Service {
	return &Service{
		imports:     imports,
		subscribers: subscribers,
		targets:     targets,
		oracle:      oracle,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
	}
}

// SetRedisClient enables progress snapshots for long-running jobs.
func (s *Service) SetRedisClient(client *redis.Client) { s.redisClient = client }

// SetBatchSize overrides the per-batch row count.
func (s *Service) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// SetConcurrency overrides the in-batch worker pool width.
func (s *Service) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// ProcessJob reconciles every row of a job against the subscriber store and
// returns the aggregated summary. Job-level misconfiguration fails fast
// before any row is touched; row-level errors are isolated, recorded, and
// counted, so one bad row never aborts the batch.
//
// Re-running the same job is safe: email uniqueness plus the skip/update
// policies guarantee at most one subscriber per canonical email no matter
// how many times a job is retried.
func (s *Service) ProcessJob(ctx context.Context, jobID string) (*domain.BatchImportSummary, error) {
	job, err := s.imports.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := validateJob(job); err != nil {
		return nil, err
	}

	log.Printf("[Reconciler] Processing job %s (policy=%s threshold=%d)",
		job.ID, job.DuplicatePolicy, job.ValidationThreshold)

	summary := &domain.BatchImportSummary{}
	start := time.Now()

	for offset := 0; ; offset += s.batchSize {
		rows, err := s.imports.Rows(ctx, jobID, offset, s.batchSize)
		if err != nil {
			return nil, fmt.Errorf("load rows for job %s: %w", jobID, err)
		}
		if len(rows) == 0 {
			break
		}

		s.processBatch(ctx, job, rows, summary)
		s.publishProgress(ctx, jobID, summary)

		if len(rows) < s.batchSize {
			break
		}
	}

	log.Printf("[Reconciler] Job %s done in %.2fs: %d processed, %d created, %d updated, %d skipped, %d failed",
		job.ID, time.Since(start).Seconds(),
		summary.TotalProcessed, summary.Created, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

func validateJob(job *domain.ImportJob) error {
	if len(job.ColumnMapping) == 0 {
		return ErrNoColumnMapping
	}
	hasEmail := false
	for _, field := range job.ColumnMapping {
		if field == "email" {
			hasEmail = true
			break
		}
	}
	if !hasEmail {
		return ErrMissingEmailField
	}
	if !job.DuplicatePolicy.Valid() {
		return ErrInvalidPolicy
	}
	if job.ValidationThreshold < 0 || job.ValidationThreshold > 100 {
		return ErrInvalidThreshold
	}
	return nil
}

// processBatch reconciles one batch with a bounded worker pool. Each row's
// result is persisted the moment the row finishes, so an interrupted job
// leaves a complete audit trail up to the point it died; summary merging
// happens afterwards in row order so error lists stay deterministic.
func (s *Service) processBatch(ctx context.Context, job *domain.ImportJob, rows []domain.ImportRow, summary *domain.BatchImportSummary) {
	results := make([]*domain.ImportRowResult, len(rows))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)
	for i := range rows {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			res := s.processRow(ctx, job, rows[i])
			if err := s.imports.SaveResult(ctx, res); err != nil {
				log.Printf("[Reconciler] Warning: failed to persist result for job %s row %d: %v",
					job.ID, res.RowNumber, err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		summary.TotalProcessed++
		switch res.Action {
		case domain.ActionCreated:
			summary.Created++
		case domain.ActionUpdated:
			summary.Updated++
		case domain.ActionSkipped:
			summary.Skipped++
		case domain.ActionFailed:
			summary.Failed++
			if res.Error != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %s", res.RowNumber, *res.Error))
			}
		}
	}
}

// processRow reconciles a single row. It never returns an error: every
// failure mode lands in the result's Action/Error fields instead.
func (s *Service) processRow(ctx context.Context, job *domain.ImportJob, row domain.ImportRow) *domain.ImportRowResult {
	res := &domain.ImportRowResult{
		ID:          uuid.New().String(),
		JobID:       job.ID,
		RowNumber:   row.RowNumber,
		Payload:     row.Payload,
		ProcessedAt: time.Now(),
	}

	verdict, err := s.oracle.Score(ctx, row)
	if err != nil {
		return failRow(res, fmt.Sprintf("validation oracle: %v", err))
	}
	res.Score = verdict.Score
	res.Classification = verdict.Classification

	if verdict.CanonicalEmail == "" {
		return failRow(res, "no usable email address")
	}
	res.CanonicalEmail = &verdict.CanonicalEmail

	// Boundary rule: a score exactly at the threshold is accepted.
	if verdict.Score < job.ValidationThreshold {
		return failRow(res, "below validation threshold")
	}

	mapped := mapRow(job.ColumnMapping, row.Payload)

	// Serialize per canonical email: two rows for the same address within a
	// job must not race each other into a duplicate create.
	unlock := s.locks.lock(verdict.CanonicalEmail)
	defer unlock()

	existing, err := s.subscribers.GetByEmail(ctx, verdict.CanonicalEmail)
	switch {
	case errors.Is(err, ErrSubscriberNotFound):
		sub, cErr := s.createSubscriber(ctx, job, verdict, mapped)
		if cErr != nil {
			return failRow(res, fmt.Sprintf("create subscriber: %v", cErr))
		}
		res.Action = domain.ActionCreated
		res.SubscriberID = &sub.ID

	case err != nil:
		return failRow(res, fmt.Sprintf("lookup subscriber: %v", err))

	default:
		action, aErr := s.applyDuplicatePolicy(ctx, job, existing, mapped)
		if aErr != nil {
			return failRow(res, aErr.Error())
		}
		res.Action = action
		res.SubscriberID = &existing.ID
	}

	return res
}

func (s *Service) createSubscriber(ctx context.Context, job *domain.ImportJob, verdict OracleResult, mapped map[string]string) (*domain.Subscriber, error) {
	now := time.Now()
	deliverability := string(verdict.Classification)

	sub := &domain.Subscriber{
		ID:                   uuid.New().String(),
		Email:                verdict.CanonicalEmail,
		EmailHash:            hashEmail(verdict.CanonicalEmail),
		Status:               statusFor(verdict.Classification),
		GroupIDs:             append([]string(nil), job.TargetGroupIDs...),
		SegmentIDs:           append([]string(nil), job.TargetSegmentIDs...),
		DeliverabilityResult: &deliverability,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	for field, value := range mapped {
		if field == "email" || value == "" {
			continue
		}
		sub.SetProfileField(field, value)
	}

	if err := s.subscribers.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// applyDuplicatePolicy dispatches on the job's closed policy enum.
func (s *Service) applyDuplicatePolicy(ctx context.Context, job *domain.ImportJob, existing *domain.Subscriber, mapped map[string]string) (domain.ImportAction, error) {
	switch job.DuplicatePolicy {
	case domain.DuplicateSkip:
		return domain.ActionSkipped, nil

	case domain.DuplicateUpdate:
		// Merge: non-empty mapped fields overwrite, membership is unioned.
		for field, value := range mapped {
			if field == "email" || value == "" {
				continue
			}
			existing.SetProfileField(field, value)
		}
		existing.GroupIDs = union(existing.GroupIDs, job.TargetGroupIDs)
		existing.SegmentIDs = union(existing.SegmentIDs, job.TargetSegmentIDs)

	case domain.DuplicateReplace:
		// Replace: the row becomes the whole profile. Fields the row does
		// not provide are cleared, membership is swapped for the job's
		// target sets.
		for field := range existing.ProfileFields() {
			existing.SetProfileField(field, "")
		}
		for field, value := range mapped {
			if field == "email" {
				continue
			}
			existing.SetProfileField(field, value)
		}
		existing.GroupIDs = append([]string(nil), job.TargetGroupIDs...)
		existing.SegmentIDs = append([]string(nil), job.TargetSegmentIDs...)

	default:
		return domain.ActionFailed, fmt.Errorf("invalid duplicate-handling policy: %s", job.DuplicatePolicy)
	}

	existing.UpdatedAt = time.Now()
	if err := s.subscribers.Update(ctx, existing); err != nil {
		return domain.ActionFailed, fmt.Errorf("update subscriber: %v", err)
	}
	return domain.ActionUpdated, nil
}

// ValidateGroupsAndSegments filters caller-supplied target ids down to ones
// that exist. Misses become error strings, not a failed call: the caller
// decides whether to proceed with a partial set.
func (s *Service) ValidateGroupsAndSegments(ctx context.Context, groupIDs, segmentIDs []string) (*TargetValidation, error) {
	v := &TargetValidation{
		ValidGroups:   []string{},
		ValidSegments: []string{},
		Errors:        []string{},
	}

	for _, id := range groupIDs {
		ok, err := s.targets.GroupExists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check group %s: %w", id, err)
		}
		if ok {
			v.ValidGroups = append(v.ValidGroups, id)
		} else {
			v.Errors = append(v.Errors, fmt.Sprintf("group %s not found", id))
		}
	}

	for _, id := range segmentIDs {
		ok, err := s.targets.SegmentExists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check segment %s: %w", id, err)
		}
		if ok {
			v.ValidSegments = append(v.ValidSegments, id)
		} else {
			v.Errors = append(v.Errors, fmt.Sprintf("segment %s not found", id))
		}
	}

	return v, nil
}

// GetIntegrationStatistics aggregates persisted row results for a job. Used
// for progress reporting while a long job is still running.
func (s *Service) GetIntegrationStatistics(ctx context.Context, jobID string) (*domain.ImportStatistics, error) {
	if _, err := s.imports.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.imports.Statistics(ctx, jobID)
}

// =============================================================================
// HELPERS
// =============================================================================

func failRow(res *domain.ImportRowResult, msg string) *domain.ImportRowResult {
	res.Action = domain.ActionFailed
	res.Error = &msg
	return res
}

// mapRow projects a raw payload through the job's column mapping. Source
// columns without a mapping entry are dropped.
func mapRow(mapping map[string]string, payload map[string]string) map[string]string {
	mapped := make(map[string]string, len(mapping))
	for sourceCol, field := range mapping {
		mapped[field] = payload[sourceCol]
	}
	return mapped
}

func statusFor(c domain.Classification) domain.SubscriberStatus {
	if c == domain.ClassificationValid {
		return domain.SubscriberActive
	}
	// Risky or invalid-but-accepted addresses start pending and need either
	// a confirmation or a manual review before they can be mailed.
	return domain.SubscriberPending
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func hashEmail(email string) string {
	sum := md5.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}

// emailLocks hands out one mutex per canonical email. The map only grows for
// the lifetime of a job run, which is bounded by the distinct addresses in
// the file.
type emailLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (e *emailLocks) lock(email string) (unlock func()) {
	e.mu.Lock()
	if e.locks == nil {
		e.locks = make(map[string]*sync.Mutex)
	}
	m, ok := e.locks[email]
	if !ok {
		m = &sync.Mutex{}
		e.locks[email] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}
