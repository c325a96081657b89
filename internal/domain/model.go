// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of the architecture — it depends on nothing.
package domain

import (
	"sort"
	"time"
)

// ─── Donation Types ─────────────────────────────────────────────────────────

// DonationStatus is the lifecycle state of a donation record.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
)

// Donation represents one settled or pending contribution.
// Amounts are minor units (cents) — never floats.
type Donation struct {
	ID            string         `json:"id"`
	ExternalTxnID string         `json:"external_txn_id"`
	ExternalSubID string         `json:"external_sub_id,omitempty"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Donor         string         `json:"donor,omitempty"` // empty for anonymous
	Recurring     bool           `json:"recurring"`
	CampaignID    string         `json:"campaign_id"`
	Status        DonationStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ─── Campaign Types ─────────────────────────────────────────────────────────

// Campaign is a fundraising goal with an accumulating total.
type Campaign struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	GoalAmount   int64       `json:"goal_amount"`
	RaisedAmount int64       `json:"raised_amount"`
	DonorCount   int         `json:"donor_count"`
	Active       bool        `json:"active"`
	Milestones   []Milestone `json:"milestones"`
}

// PercentRaised returns the campaign progress as whole percent (0 goal → 0).
func (c *Campaign) PercentRaised() int {
	if c.GoalAmount <= 0 {
		return 0
	}
	return int(c.RaisedAmount * 100 / c.GoalAmount)
}

// ─── Milestone Types ────────────────────────────────────────────────────────

// MilestoneActions is the set of side effects a milestone fires.
type MilestoneActions struct {
	NotifyDonor   bool `json:"notify_donor"`
	PostSocial    bool `json:"post_social"`
	NotifyTeam    bool `json:"notify_team"`
	UpdateCounter bool `json:"update_counter"`
}

// Milestone is a threshold attached to a campaign. Either Percentage or
// Amount may be set at definition time; NormalizeMilestones derives the
// missing one from the campaign goal. Triggered transitions false→true
// at most once per campaign lifetime.
type Milestone struct {
	Percentage int              `json:"percentage"`
	Amount     int64            `json:"amount"`
	Triggered  bool             `json:"triggered"`
	Actions    MilestoneActions `json:"actions"`
}

// NormalizeMilestones fills in the derived threshold field for each
// milestone and sorts them ascending by amount. Evaluation works on
// amounts only; percentages are presentation.
func NormalizeMilestones(goal int64, ms []Milestone) []Milestone {
	out := make([]Milestone, len(ms))
	copy(out, ms)
	for i := range out {
		if out[i].Amount == 0 && out[i].Percentage > 0 && goal > 0 {
			out[i].Amount = goal * int64(out[i].Percentage) / 100
		}
		if out[i].Percentage == 0 && out[i].Amount > 0 && goal > 0 {
			out[i].Percentage = int(out[i].Amount * 100 / goal)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out
}

// ─── Inbound Event Types ────────────────────────────────────────────────────

// Event is a raw inbound payment-processor event.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// Valid reports whether the event carries the minimum required fields.
func (e Event) Valid() bool {
	return e.ID != "" && e.Type != "" && len(e.Data) > 0
}

// Recognized event kinds. Anything else is acknowledged as unsupported.
const (
	EventCheckoutCompleted    = "checkout-completed"
	EventPaymentSucceeded     = "payment-succeeded"
	EventRecurringSucceeded   = "recurring-payment-succeeded"
	EventSubscriptionCreated  = "subscription-created"
	EventSubscriptionUpdated  = "subscription-updated"
	EventSubscriptionCanceled = "subscription-cancelled"
)

// ─── Performance Metrics ────────────────────────────────────────────────────

// PerformanceMetric is one record per resilient-executor invocation.
type PerformanceMetric struct {
	Operation  string        `json:"operation"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	RetryCount int           `json:"retry_count"`
	At         time.Time     `json:"at"`
}

// HealthState is the rolling health derived from recent metrics.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)
