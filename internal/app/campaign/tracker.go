// Package campaign maintains running fundraising totals per campaign.
//
// The incremental path (ApplyDonation) is an optimization; the derived sum
// over completed donations (RecomputeRaised) is the source of truth and is
// used for reconciliation.
package campaign

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/givepulse/givepulse/internal/domain"
)

// Tracker updates and reconciles campaign aggregates.
type Tracker struct {
	campaigns domain.CampaignStore
	donations domain.DonationStore
	log       *slog.Logger
}

// New creates a tracker over the two stores.
func New(campaigns domain.CampaignStore, donations domain.DonationStore, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		campaigns: campaigns,
		donations: donations,
		log:       log.With("component", "campaign"),
	}
}

// Get returns a campaign by id.
func (t *Tracker) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return t.campaigns.Get(ctx, id)
}

// List returns all campaigns.
func (t *Tracker) List(ctx context.Context) ([]domain.Campaign, error) {
	return t.campaigns.List(ctx)
}

// ApplyDonation increments raised amount and donor count for the campaign.
// Must be called exactly once per newly-ledgered donation — never for a
// short-circuited duplicate; the ledger guarantees that.
func (t *Tracker) ApplyDonation(ctx context.Context, campaignID string, amount int64) (*domain.Campaign, error) {
	c, err := t.campaigns.ApplyDonation(ctx, campaignID, amount)
	if err != nil {
		return nil, fmt.Errorf("apply donation to %s: %w", campaignID, err)
	}
	t.log.Info("campaign total advanced",
		"campaign", c.ID, "raised", c.RaisedAmount, "goal", c.GoalAmount, "donors", c.DonorCount)
	return c, nil
}

// RecomputeRaised derives the raised amount from the ledger: the sum of
// completed donation amounts for the campaign.
func (t *Tracker) RecomputeRaised(ctx context.Context, campaignID string) (int64, error) {
	dons, err := t.donations.ListByCampaign(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("recompute %s: %w", campaignID, err)
	}
	var sum int64
	for _, d := range dons {
		if d.Status == domain.DonationCompleted {
			sum += d.Amount
		}
	}
	return sum, nil
}
