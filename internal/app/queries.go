package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/givepulse/givepulse/internal/domain"
)

// ─── Query Surface ──────────────────────────────────────────────────────────
// Read-side operations for reporting and operational tooling. None of these
// mutate state.

// Processing-fee estimate, Stripe-like: 2.9% + 30 minor units per donation.
var (
	feeRate  = decimal.NewFromFloat(0.029)
	feeFixed = decimal.NewFromInt(30)
)

// DonationStats summarizes the ledger across all campaigns.
type DonationStats struct {
	TotalRaised         int64  `json:"total_raised"`
	DonationCount       int    `json:"donation_count"`
	RecurringCount      int    `json:"recurring_count"`
	EstimatedFees       string `json:"estimated_fees"`
	MilestonesTriggered int    `json:"milestones_triggered"`
}

// GetCampaign returns a campaign with its milestone states.
func (c *Core) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return c.tracker.Get(ctx, id)
}

// ListCampaigns returns all campaigns.
func (c *Core) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	return c.tracker.List(ctx)
}

// CreateCampaign normalizes milestone thresholds and stores the campaign.
func (c *Core) CreateCampaign(ctx context.Context, camp *domain.Campaign) error {
	if camp.ID == "" || camp.GoalAmount <= 0 {
		return fmt.Errorf("campaign requires id and positive goal")
	}
	camp.Milestones = domain.NormalizeMilestones(camp.GoalAmount, camp.Milestones)
	if err := c.campaigns.Put(ctx, camp); err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	c.log.Info("campaign created", "campaign", camp.ID, "goal", camp.GoalAmount, "milestones", len(camp.Milestones))
	return nil
}

// GetDonationStats aggregates completed donations and triggered milestones.
func (c *Core) GetDonationStats(ctx context.Context) (*DonationStats, error) {
	dons, err := c.donations.ListCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("donation stats: %w", err)
	}

	stats := &DonationStats{DonationCount: len(dons)}
	for _, d := range dons {
		stats.TotalRaised += d.Amount
		if d.Recurring {
			stats.RecurringCount++
		}
	}

	fees := feeRate.Mul(decimal.NewFromInt(stats.TotalRaised)).
		Add(feeFixed.Mul(decimal.NewFromInt(int64(stats.DonationCount)))).
		Round(0)
	stats.EstimatedFees = fees.String()

	camps, err := c.tracker.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("donation stats: %w", err)
	}
	for _, camp := range camps {
		for _, m := range camp.Milestones {
			if m.Triggered {
				stats.MilestonesTriggered++
			}
		}
	}
	return stats, nil
}

// GetAutomationLogs returns the most recent task execution records.
func (c *Core) GetAutomationLogs(limit int) []domain.AutomationRecord {
	return c.queue.Logs(limit)
}

// HealthStatus derives rolling health from recent executor metrics.
func (c *Core) HealthStatus() domain.HealthState {
	return c.monitor.HealthStatus()
}

// RecomputeRaised re-derives a campaign total from the ledger for
// reconciliation.
func (c *Core) RecomputeRaised(ctx context.Context, campaignID string) (int64, error) {
	return c.tracker.RecomputeRaised(ctx, campaignID)
}
