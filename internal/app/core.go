// Package app composes the donation engine: ledger, aggregate tracker,
// milestone engine, automation queue, and event router, behind one service
// struct constructed at process start and passed by reference — no
// module-level singletons.
//
// Control flow per inbound event: router validates and dispatches → the
// handler ledgers the donation (idempotent) → the tracker advances the
// campaign total → the milestone engine fires newly-met thresholds →
// triggered actions land on the automation queue, which runs them off the
// ingestion path.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/givepulse/givepulse/internal/app/automation"
	"github.com/givepulse/givepulse/internal/app/campaign"
	"github.com/givepulse/givepulse/internal/app/ledger"
	"github.com/givepulse/givepulse/internal/app/milestone"
	"github.com/givepulse/givepulse/internal/app/router"
	"github.com/givepulse/givepulse/internal/domain"
	"github.com/givepulse/givepulse/internal/infra/metrics"
)

// Core is the composed donation engine.
type Core struct {
	donations  domain.DonationStore
	campaigns  domain.CampaignStore
	ledger     *ledger.Ledger
	tracker    *campaign.Tracker
	milestones *milestone.Engine
	queue      *automation.Queue
	router     *router.Router
	monitor    *metrics.Monitor
	log        *slog.Logger
}

// New wires the engine over the given stores, queue, and monitor.
func New(donations domain.DonationStore, campaigns domain.CampaignStore,
	queue *automation.Queue, monitor *metrics.Monitor, log *slog.Logger) *Core {

	if log == nil {
		log = slog.Default()
	}

	c := &Core{
		donations:  donations,
		campaigns:  campaigns,
		ledger:     ledger.New(donations, log),
		tracker:    campaign.New(campaigns, donations, log),
		milestones: milestone.New(campaigns, queue, log),
		queue:      queue,
		router:     router.New(log),
		monitor:    monitor,
		log:        log.With("component", "core"),
	}

	c.router.Register(domain.EventCheckoutCompleted, c.handleDonation(false))
	c.router.Register(domain.EventPaymentSucceeded, c.handleDonation(false))
	c.router.Register(domain.EventRecurringSucceeded, c.handleDonation(true))
	c.router.Register(domain.EventSubscriptionCreated, c.handleSubscriptionChange)
	c.router.Register(domain.EventSubscriptionUpdated, c.handleSubscriptionChange)
	c.router.Register(domain.EventSubscriptionCanceled, c.handleSubscriptionCanceled)

	return c
}

// HandleEvent routes one inbound processor event. Handled and failed
// ingestions feed the health monitor; unsupported kinds do not count
// against health.
func (c *Core) HandleEvent(ctx context.Context, ev domain.Event) router.Result {
	start := time.Now()
	res := c.router.Dispatch(ctx, ev)

	if res.Outcome == router.OutcomeHandled || res.Outcome == router.OutcomeFailed {
		m := domain.PerformanceMetric{
			Operation: "ingest:" + ev.Type,
			Duration:  time.Since(start),
			Success:   res.Outcome == router.OutcomeHandled,
			At:        time.Now(),
		}
		if !m.Success {
			m.ErrorKind = "handler_error"
		}
		c.monitor.Record(m)
	}
	return res
}

// Queue exposes the automation queue for the worker loop.
func (c *Core) Queue() *automation.Queue { return c.queue }

// ─── Event Handlers ─────────────────────────────────────────────────────────

// handleDonation ledgers a payment event and advances the campaign.
// recurring marks donations originating from subscription billing cycles.
func (c *Core) handleDonation(recurring bool) router.Handler {
	return func(ctx context.Context, ev domain.Event) error {
		cand, err := donationCandidate(ev, recurring)
		if err != nil {
			return err
		}

		don, existed, err := c.ledger.Record(ctx, cand)
		if err != nil {
			return fmt.Errorf("ledger donation: %w", err)
		}
		if existed {
			// Redelivery: already counted, nothing more to do.
			return nil
		}

		camp, err := c.tracker.ApplyDonation(ctx, don.CampaignID, don.Amount)
		if err != nil {
			return fmt.Errorf("apply donation: %w", err)
		}

		if _, err := c.milestones.CheckMilestones(ctx, camp); err != nil {
			return fmt.Errorf("check milestones: %w", err)
		}

		c.enqueueDonationFollowups(don)
		return nil
	}
}

// enqueueDonationFollowups defers the thank-you email and receipt so the
// webhook acknowledgment never waits on outbound calls.
func (c *Core) enqueueDonationFollowups(don *domain.Donation) {
	if don.Donor != "" {
		c.queue.Enqueue(domain.AutomationTask{
			ID:   uuid.NewString(),
			Kind: domain.TaskThankYouEmail,
			Email: &domain.EmailPayload{
				Donor:      don.Donor,
				CampaignID: don.CampaignID,
				Amount:     don.Amount,
				Currency:   don.Currency,
			},
		})
	}
	c.queue.Enqueue(domain.AutomationTask{
		ID:   uuid.NewString(),
		Kind: domain.TaskReceipt,
		Receipt: &domain.ReceiptPayload{
			DonationID:    don.ID,
			ExternalTxnID: don.ExternalTxnID,
			Amount:        don.Amount,
			Currency:      don.Currency,
		},
	})
}

// handleSubscriptionChange acknowledges subscription lifecycle updates.
// Aggregates only move on actual payment events; a created or updated
// subscription is bookkeeping until its first recurring payment arrives.
func (c *Core) handleSubscriptionChange(ctx context.Context, ev domain.Event) error {
	subID, _ := stringField(ev.Data, "subscription_id")
	if subID == "" {
		return fmt.Errorf("subscription event %s: %w", ev.ID, domain.ErrEventInvalid)
	}
	c.log.Info("subscription change acknowledged", "event", ev.ID, "type", ev.Type, "subscription", subID)
	return nil
}

func (c *Core) handleSubscriptionCanceled(ctx context.Context, ev domain.Event) error {
	subID, _ := stringField(ev.Data, "subscription_id")
	if subID == "" {
		return fmt.Errorf("subscription event %s: %w", ev.ID, domain.ErrEventInvalid)
	}
	donor, _ := stringField(ev.Data, "donor")
	c.log.Info("subscription cancelled", "event", ev.ID, "subscription", subID, "donor", donor)
	return nil
}

// ─── Payload Parsing ────────────────────────────────────────────────────────

// donationCandidate extracts the ledger candidate from event data. Missing
// required fields classify as a permanent validation rejection.
func donationCandidate(ev domain.Event, recurring bool) (ledger.Candidate, error) {
	txn, _ := stringField(ev.Data, "transaction_id")
	campaignID, _ := stringField(ev.Data, "campaign_id")
	amount, amountOK := int64Field(ev.Data, "amount")
	if txn == "" || campaignID == "" || !amountOK || amount <= 0 {
		return ledger.Candidate{}, fmt.Errorf("donation event %s: %w", ev.ID, domain.ErrEventInvalid)
	}

	currency, ok := stringField(ev.Data, "currency")
	if !ok || currency == "" {
		currency = "usd"
	}
	donor, _ := stringField(ev.Data, "donor")
	subID, _ := stringField(ev.Data, "subscription_id")

	return ledger.Candidate{
		ExternalTxnID: txn,
		ExternalSubID: subID,
		Amount:        amount,
		Currency:      currency,
		Donor:         donor,
		Recurring:     recurring || subID != "",
		CampaignID:    campaignID,
	}, nil
}

func stringField(data map[string]any, key string) (string, bool) {
	v, ok := data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// int64Field reads a minor-unit amount. JSON decoding yields float64; the
// store and tests may supply integer types directly.
func int64Field(data map[string]any, key string) (int64, bool) {
	switch v := data[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
