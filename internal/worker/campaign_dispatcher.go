package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailflow/internal/domain"
	"github.com/ignite/mailflow/internal/mailing"
	"github.com/ignite/mailflow/internal/pkg/distlock"
)

// =============================================================================
// CAMPAIGN DISPATCHER WORKER
// =============================================================================
// Polls for campaigns with status='scheduled' whose scheduled_at has arrived
// and hands each one to the send mechanism exactly once.
//
// The claim is an atomic conditional transition scheduled -> sending: only
// the worker whose UPDATE affects a row proceeds to send. Losers of the race
// skip silently. That single compare-and-set is the only cross-instance
// coordination the dispatcher needs; the optional Redis lock just cuts down
// on wasted claim attempts when several instances tick at once.

const (
	// DefaultDispatchPollInterval must stay shorter than the finest
	// acceptable scheduling granularity.
	DefaultDispatchPollInterval = 30 * time.Second

	// DuePollLimit caps how many due campaigns one tick will claim.
	DuePollLimit = 10

	// SendMaxAttempts bounds retries after a successful claim. The claim is
	// never released between attempts, so retrying cannot double-send.
	SendMaxAttempts = 3

	// SendRetryBackoff is the first retry delay; it doubles per attempt.
	SendRetryBackoff = 30 * time.Second
)

// CampaignDispatcher is the time-driven loop that triggers campaign sends.
type CampaignDispatcher struct {
	db          *sql.DB
	redisClient *redis.Client // optional; nil falls back to PG advisory locks
	sender      mailing.CampaignSender

	workerID     string
	pollInterval time.Duration
	retryBackoff time.Duration
	now          func() time.Time

	// Stats
	campaignsDispatched int64
	dispatchFailures    int64
	claimsLost          int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewCampaignDispatcher creates a dispatcher over the given database and
// send mechanism.
func NewCampaignDispatcher(db *sql.DB, sender mailing.CampaignSender) *CampaignDispatcher {
	return &CampaignDispatcher{
		db:           db,
		sender:       sender,
		workerID:     fmt.Sprintf("dispatcher-%s-%d", hostname(), time.Now().UnixNano()%10000),
		pollInterval: DefaultDispatchPollInterval,
		retryBackoff: SendRetryBackoff,
		now:          time.Now,
	}
}

// SetRedisClient sets the Redis client for distributed locking. If unset the
// dispatcher uses PostgreSQL advisory locks instead.
func (d *CampaignDispatcher) SetRedisClient(client *redis.Client) { d.redisClient = client }

// SetPollInterval overrides the tick interval.
func (d *CampaignDispatcher) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		d.pollInterval = interval
	}
}

// SetRetryBackoff overrides the initial retry delay.
func (d *CampaignDispatcher) SetRetryBackoff(backoff time.Duration) {
	if backoff > 0 {
		d.retryBackoff = backoff
	}
}

// SetClock overrides the dispatcher's clock. Tests use this to pin "now".
func (d *CampaignDispatcher) SetClock(now func() time.Time) { d.now = now }

// baseContext is the dispatcher's lifecycle context, or Background before
// Start has been called.
func (d *CampaignDispatcher) baseContext() context.Context {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ctx != nil {
		return d.ctx
	}
	return context.Background()
}

// Start begins the dispatch polling loop.
func (d *CampaignDispatcher) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.mu.Unlock()

	log.Printf("[CampaignDispatcher] Starting with poll interval: %v", d.pollInterval)

	d.registerWorker()

	d.wg.Add(1)
	go d.heartbeatLoop()

	d.wg.Add(1)
	go d.dispatchLoop()

	return nil
}

// Stop gracefully stops the dispatcher. In-flight sends keep their claim;
// a restarted instance will not re-send them because the campaigns are
// already in 'sending'.
func (d *CampaignDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	log.Printf("[CampaignDispatcher] Stopping...")
	d.cancel()
	d.wg.Wait()
	d.deregisterWorker()
	log.Printf("[CampaignDispatcher] Stopped. Dispatched: %d campaigns, failures: %d",
		atomic.LoadInt64(&d.campaignsDispatched), atomic.LoadInt64(&d.dispatchFailures))
}

func (d *CampaignDispatcher) dispatchLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Tick runs one poll cycle: find due campaigns, claim, dispatch. Exported so
// tests (and operational tooling) can drive the dispatcher deterministically
// without the ticker; it works before Start as well.
func (d *CampaignDispatcher) Tick() {
	ctx, cancel := context.WithTimeout(d.baseContext(), 60*time.Second)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, subject, from_name, from_email, html_content, plain_content, scheduled_at
		FROM mailing_campaigns
		WHERE status = 'scheduled'
		  AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`, d.now(), DuePollLimit)
	if err != nil {
		log.Printf("[CampaignDispatcher] Error fetching due campaigns: %v", err)
		return
	}
	defer rows.Close()

	var due []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		var at time.Time
		if err := rows.Scan(&c.ID, &c.Name, &c.Subject, &c.FromName, &c.FromEmail,
			&c.HTMLContent, &c.PlainContent, &at); err != nil {
			log.Printf("[CampaignDispatcher] Error scanning campaign: %v", err)
			continue
		}
		c.Status = domain.CampaignScheduled
		c.ScheduledAt = &at
		due = append(due, c)
	}

	for i := range due {
		d.claimAndDispatch(ctx, due[i])
	}
}

// claimAndDispatch attempts the atomic scheduled -> sending transition and,
// on success, fires the send asynchronously so one slow campaign never
// blocks the tick.
func (d *CampaignDispatcher) claimAndDispatch(ctx context.Context, c domain.Campaign) {
	lock := distlock.NewLock(d.redisClient, d.db, fmt.Sprintf("dispatch:%s", c.ID), 10*time.Minute)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Printf("[CampaignDispatcher] Error acquiring lock for campaign %s: %v", c.ID, err)
		return
	}
	if !acquired {
		return
	}
	defer lock.Release(ctx)

	result, err := d.db.ExecContext(ctx, `
		UPDATE mailing_campaigns
		SET status = 'sending', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`, c.ID)
	if err != nil {
		log.Printf("[CampaignDispatcher] Error claiming campaign %s: %v", c.ID, err)
		return
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		// Another worker won the claim, or the campaign was cancelled or
		// rescheduled between the poll and the claim.
		atomic.AddInt64(&d.claimsLost, 1)
		return
	}

	log.Printf("[CampaignDispatcher] Claimed campaign %s (%s), dispatching", c.ID, c.Name)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.dispatch(d.baseContext(), c)
	}()
}

// dispatch invokes the send mechanism with bounded retries, then records the
// terminal state. The campaign never vanishes into 'sending': it either
// lands in 'sent' or in 'failed' with the reason persisted.
func (d *CampaignDispatcher) dispatch(ctx context.Context, c domain.Campaign) {
	var lastErr error
	for attempt := 1; attempt <= SendMaxAttempts; attempt++ {
		err := d.sender.SendCampaign(ctx, &c)
		if err == nil {
			d.markSent(c.ID)
			atomic.AddInt64(&d.campaignsDispatched, 1)
			return
		}
		lastErr = err
		log.Printf("[CampaignDispatcher] Campaign %s send attempt %d/%d failed: %v",
			c.ID, attempt, SendMaxAttempts, err)

		if attempt < SendMaxAttempts {
			backoff := d.retryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				// Shutting down mid-retry: record the failure now so the
				// campaign stays observable instead of stuck in 'sending'.
				d.markFailed(c.ID, lastErr)
				atomic.AddInt64(&d.dispatchFailures, 1)
				return
			case <-time.After(backoff):
			}
		}
	}

	d.markFailed(c.ID, lastErr)
	atomic.AddInt64(&d.dispatchFailures, 1)
}

func (d *CampaignDispatcher) markSent(id string) {
	_, err := d.db.Exec(`
		UPDATE mailing_campaigns
		SET status = 'sent', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'sending'
	`, id)
	if err != nil {
		log.Printf("[CampaignDispatcher] Error marking campaign %s sent: %v", id, err)
		return
	}
	log.Printf("[CampaignDispatcher] Campaign %s sent", id)
}

func (d *CampaignDispatcher) markFailed(id string, cause error) {
	reason := "dispatch failed"
	if cause != nil {
		reason = cause.Error()
	}
	_, err := d.db.Exec(`
		UPDATE mailing_campaigns
		SET status = 'failed', last_error = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'sending'
	`, id, reason)
	if err != nil {
		log.Printf("[CampaignDispatcher] Error marking campaign %s failed: %v", id, err)
		return
	}
	log.Printf("[CampaignDispatcher] Campaign %s failed after %d attempts: %s", id, SendMaxAttempts, reason)
}

// =============================================================================
// WORKER REGISTRY
// =============================================================================

func (d *CampaignDispatcher) registerWorker() {
	_, err := d.db.Exec(`
		INSERT INTO mailing_workers (id, worker_type, hostname, status, started_at, last_heartbeat_at)
		VALUES ($1, 'dispatcher', $2, 'running', NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET status = 'running', last_heartbeat_at = NOW()
	`, d.workerID, hostname())
	if err != nil {
		log.Printf("[CampaignDispatcher] Warning: failed to register worker: %v", err)
	}
}

func (d *CampaignDispatcher) deregisterWorker() {
	_, err := d.db.Exec(`
		UPDATE mailing_workers SET status = 'stopped' WHERE id = $1
	`, d.workerID)
	if err != nil {
		log.Printf("[CampaignDispatcher] Warning: failed to deregister worker: %v", err)
	}
}

func (d *CampaignDispatcher) heartbeatLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.db.Exec(`
				UPDATE mailing_workers
				SET last_heartbeat_at = NOW(), metadata = $2
				WHERE id = $1
			`, d.workerID, fmt.Sprintf(`{"dispatched": %d, "failures": %d, "claims_lost": %d}`,
				atomic.LoadInt64(&d.campaignsDispatched),
				atomic.LoadInt64(&d.dispatchFailures),
				atomic.LoadInt64(&d.claimsLost)))
		}
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
