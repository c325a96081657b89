package domain

import "context"

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define the storage boundary. Infrastructure implements
// them (in-memory for tests, SQLite for production); the application layer
// depends only on these and never branches on the environment.

// DonationStore persists the append-only donation ledger.
type DonationStore interface {
	// GetByExternalTxn returns the donation for an external transaction id,
	// or ErrDonationNotFound.
	GetByExternalTxn(ctx context.Context, txnID string) (*Donation, error)

	// Insert appends a donation. Returns ErrDonationExists if a completed
	// donation for the same external transaction id is already recorded;
	// the store's uniqueness guarantee is the last line of idempotency.
	Insert(ctx context.Context, d *Donation) error

	// ListByCampaign returns all donations for a campaign.
	ListByCampaign(ctx context.Context, campaignID string) ([]Donation, error)

	// ListCompleted returns all completed donations across campaigns.
	ListCompleted(ctx context.Context) ([]Donation, error)
}

// CampaignStore persists campaigns and their milestone flags.
type CampaignStore interface {
	// Get returns a campaign by id, or ErrCampaignNotFound.
	Get(ctx context.Context, id string) (*Campaign, error)

	// Put creates or replaces a campaign definition.
	Put(ctx context.Context, c *Campaign) error

	// List returns all campaigns.
	List(ctx context.Context) ([]Campaign, error)

	// ApplyDonation atomically increments raised amount and donor count,
	// returning the updated campaign.
	ApplyDonation(ctx context.Context, campaignID string, amount int64) (*Campaign, error)

	// SetMilestoneTriggered persists the one-shot triggered flag for the
	// milestone at index, compare-and-set: it reports whether this call
	// flipped the flag false→true. Concurrent writers racing on a stale
	// snapshot get flipped=false and must not fire the milestone's
	// actions. Must be durable before any milestone side effect is
	// enqueued.
	SetMilestoneTriggered(ctx context.Context, campaignID string, index int) (flipped bool, err error)
}
