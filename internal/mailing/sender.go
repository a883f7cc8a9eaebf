package mailing

import (
	"context"

	"github.com/ignite/mailflow/internal/domain"
)

// CampaignSender is the external send mechanism the dispatcher hands a
// claimed campaign to. Implementations are expected to be long-running and
// are invoked fire-and-forget relative to the dispatcher tick; they must be
// safe for concurrent use.
type CampaignSender interface {
	// SendCampaign delivers the campaign to its audience. A nil return means
	// the mechanism accepted the campaign and completed delivery handoff.
	SendCampaign(ctx context.Context, c *domain.Campaign) error
}

// SenderFunc adapts a function to the CampaignSender interface.
type SenderFunc func(ctx context.Context, c *domain.Campaign) error

// SendCampaign calls f.
func (f SenderFunc) SendCampaign(ctx context.Context, c *domain.Campaign) error {
	return f(ctx, c)
}
