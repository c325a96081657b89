package automation

import (
	"context"
	"log/slog"

	"github.com/givepulse/givepulse/internal/domain"
)

// LogEffects is the default Effects implementation: it logs each side
// effect instead of delivering it. Production deployments swap in real
// email/social/chat adapters; the core never inspects delivery beyond the
// returned error.
type LogEffects struct {
	Log *slog.Logger
}

func (e LogEffects) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

func (e LogEffects) SendDonorEmail(ctx context.Context, p domain.EmailPayload) error {
	e.logger().Info("thank-you email", "donor", p.Donor, "campaign", p.CampaignID, "amount", p.Amount)
	return nil
}

func (e LogEffects) SendMilestoneEmail(ctx context.Context, p domain.MilestonePayload) error {
	e.logger().Info("milestone email", "campaign", p.CampaignID, "percentage", p.Percentage)
	return nil
}

func (e LogEffects) PostSocial(ctx context.Context, p domain.MilestonePayload) error {
	e.logger().Info("social post", "campaign", p.CampaignID, "percentage", p.Percentage, "raised", p.Raised)
	return nil
}

func (e LogEffects) NotifyTeam(ctx context.Context, p domain.MilestonePayload) error {
	e.logger().Info("team notification", "campaign", p.CampaignID, "percentage", p.Percentage)
	return nil
}

func (e LogEffects) SendReceipt(ctx context.Context, p domain.ReceiptPayload) error {
	e.logger().Info("receipt", "donation", p.DonationID, "txn", p.ExternalTxnID, "amount", p.Amount)
	return nil
}

func (e LogEffects) UpdatePublicCounter(ctx context.Context, p domain.MilestonePayload) error {
	e.logger().Info("public counter update", "campaign", p.CampaignID, "raised", p.Raised)
	return nil
}
