package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailflow/internal/pkg/httputil"
	"github.com/ignite/mailflow/internal/service/reconcile"
	"github.com/ignite/mailflow/internal/service/schedule"
)

// Handlers holds the service dependencies shared by all endpoints.
type Handlers struct {
	schedules *schedule.Service
	imports   *reconcile.Service
}

// NewHandlers creates the handler set.
func NewHandlers(schedules *schedule.Service, imports *reconcile.Service) *Handlers {
	return &Handlers{schedules: schedules, imports: imports}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// ============================================================================
// Campaign scheduling
// ============================================================================

type scheduleRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

func (req scheduleRequest) parse() (time.Time, error) {
	return time.Parse(time.RFC3339, req.ScheduledAt)
}

// HandleScheduleCampaign schedules a draft (or already scheduled) campaign
// for a future dispatch time.
func (h *Handlers) HandleScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	at, err := req.parse()
	if err != nil {
		httputil.BadRequest(w, "scheduled_at must be RFC 3339")
		return
	}

	c, err := h.schedules.Schedule(r.Context(), chi.URLParam(r, "campaignId"), at)
	if err != nil {
		h.scheduleError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleCancelSchedule returns a scheduled campaign to draft.
func (h *Handlers) HandleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	c, err := h.schedules.Cancel(r.Context(), chi.URLParam(r, "campaignId"))
	if err != nil {
		h.scheduleError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleRescheduleCampaign moves an already scheduled campaign to a new time.
func (h *Handlers) HandleRescheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	at, err := req.parse()
	if err != nil {
		httputil.BadRequest(w, "scheduled_at must be RFC 3339")
		return
	}

	c, err := h.schedules.Reschedule(r.Context(), chi.URLParam(r, "campaignId"), at)
	if err != nil {
		h.scheduleError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleListScheduled lists campaigns waiting for dispatch, soonest first.
func (h *Handlers) HandleListScheduled(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.schedules.ListScheduled(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"campaigns": campaigns, "count": len(campaigns)})
}

// HandleSchedulingStats reports pipeline counters for the dashboard.
func (h *Handlers) HandleSchedulingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.schedules.Stats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

func (h *Handlers) scheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, schedule.ErrInvalidState):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, schedule.ErrInvalidScheduleTime):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

// ============================================================================
// Bulk import
// ============================================================================

// HandleProcessImport runs reconciliation for a staged import job and
// returns the summary. This blocks until the job finishes.
func (h *Handlers) HandleProcessImport(w http.ResponseWriter, r *http.Request) {
	summary, err := h.imports.ProcessJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		h.importError(w, err)
		return
	}
	httputil.OK(w, summary)
}

type validateTargetsRequest struct {
	GroupIDs   []string `json:"group_ids"`
	SegmentIDs []string `json:"segment_ids"`
}

// HandleValidateTargets checks which of the requested groups and segments
// exist before a job is created against them.
func (h *Handlers) HandleValidateTargets(w http.ResponseWriter, r *http.Request) {
	var req validateTargetsRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	result, err := h.imports.ValidateGroupsAndSegments(r.Context(), req.GroupIDs, req.SegmentIDs)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// HandleImportStatistics returns persisted per-row aggregates for a job.
func (h *Handlers) HandleImportStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.imports.GetIntegrationStatistics(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		h.importError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// HandleImportProgress returns the live progress snapshot for a running
// job, or 404 when none has been published.
func (h *Handlers) HandleImportProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.imports.GetProgress(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if progress == nil {
		httputil.NotFound(w, "no progress recorded for job")
		return
	}
	httputil.OK(w, progress)
}

func (h *Handlers) importError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reconcile.ErrJobNotFound):
		httputil.NotFound(w, "import job not found")
	case errors.Is(err, reconcile.ErrNoColumnMapping),
		errors.Is(err, reconcile.ErrMissingEmailField),
		errors.Is(err, reconcile.ErrInvalidPolicy),
		errors.Is(err, reconcile.ErrInvalidThreshold):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
