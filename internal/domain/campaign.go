package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Campaign represents an email campaign's delivery lifecycle. Content and
// authoring happen upstream; this core only moves Status and ScheduledAt.
//
// Invariant: ScheduledAt is non-nil if and only if Status is "scheduled".
type Campaign struct {
	ID           string         `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Subject      string         `json:"subject" db:"subject"`
	FromName     string         `json:"from_name" db:"from_name"`
	FromEmail    string         `json:"from_email" db:"from_email"`
	HTMLContent  string         `json:"html_content" db:"html_content"`
	PlainContent string         `json:"plain_content" db:"plain_content"`
	Status       CampaignStatus `json:"status" db:"status"`
	ScheduledAt  *time.Time     `json:"scheduled_at" db:"scheduled_at"`

	// LastError holds the dispatch failure reason when Status is "failed".
	LastError *string `json:"last_error" db:"last_error"`

	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state for the
// dispatcher: no further scheduling actions are valid.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed
}

// SchedulingStats summarizes the schedule registry for operational visibility.
type SchedulingStats struct {
	PendingCount   int        `json:"pending_count"`
	NextDispatchAt *time.Time `json:"next_dispatch_at"`
	SendingCount   int        `json:"sending_count"`
	SentCount      int        `json:"sent_count"`
	FailedCount    int        `json:"failed_count"`
}
