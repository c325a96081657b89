package domain

import "time"

// ─── Automation Task Types ──────────────────────────────────────────────────
// Tasks are a tagged variant: Kind selects which payload field is set.
// The queue worker dispatches on Kind exhaustively; payloads are typed,
// never free-form metadata bags.

// TaskKind identifies the deferred side effect a task performs.
type TaskKind string

const (
	TaskThankYouEmail    TaskKind = "thank-you-email"
	TaskMilestoneEmail   TaskKind = "milestone-email"
	TaskSocialPost       TaskKind = "social-post"
	TaskTeamNotification TaskKind = "team-notification"
	TaskReceipt          TaskKind = "receipt"
	TaskCounterUpdate    TaskKind = "counter-update"
)

// EmailPayload addresses a transactional email to a donor.
type EmailPayload struct {
	Donor      string `json:"donor"`
	CampaignID string `json:"campaign_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// MilestonePayload describes a milestone crossing for emails and posts.
type MilestonePayload struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Percentage   int    `json:"percentage"`
	Amount       int64  `json:"amount"`
	Raised       int64  `json:"raised"`
}

// ReceiptPayload references the external transaction a receipt covers.
type ReceiptPayload struct {
	DonationID    string `json:"donation_id"`
	ExternalTxnID string `json:"external_txn_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// AutomationTask is one deferred side effect. Exactly one payload pointer
// is non-nil, matching Kind.
type AutomationTask struct {
	ID         string            `json:"id"`
	Kind       TaskKind          `json:"kind"`
	Email      *EmailPayload     `json:"email,omitempty"`
	Milestone  *MilestonePayload `json:"milestone,omitempty"`
	Receipt    *ReceiptPayload   `json:"receipt,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	Attempts   int               `json:"attempts"`
}

// ─── Automation Log ─────────────────────────────────────────────────────────

// TaskStatus is the terminal outcome of one task execution.
type TaskStatus string

const (
	TaskDone   TaskStatus = "done"
	TaskFailed TaskStatus = "failed"
)

// AutomationRecord is one entry in the bounded automation log.
type AutomationRecord struct {
	TaskID   string        `json:"task_id"`
	Kind     TaskKind      `json:"kind"`
	Status   TaskStatus    `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}
