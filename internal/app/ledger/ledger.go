// Package ledger records donations idempotently.
//
// Duplicate webhook delivery is expected: the same external transaction id
// may arrive twice, concurrently. Recording serializes per transaction id,
// checks for an existing completed donation, and only then inserts. The
// store's unique index backs the same guarantee at the storage level.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/givepulse/givepulse/internal/domain"
	"github.com/givepulse/givepulse/internal/infra/metrics"
)

// Candidate is a donation about to be ledgered, parsed from an event.
type Candidate struct {
	ExternalTxnID string
	ExternalSubID string
	Amount        int64
	Currency      string
	Donor         string
	Recurring     bool
	CampaignID    string
}

// Ledger is the append-only donation store front.
type Ledger struct {
	store domain.DonationStore
	keys  keyedMutex
	log   *slog.Logger
	now   func() time.Time
}

// New creates a ledger over store.
func New(store domain.DonationStore, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		store: store,
		log:   log.With("component", "ledger"),
		now:   time.Now,
	}
}

// Record ledgers the candidate as a completed donation. If a completed
// donation already exists for the candidate's external transaction id, the
// existing record is returned with existed=true and nothing is written —
// this is the no-op success that makes redelivery safe.
func (l *Ledger) Record(ctx context.Context, cand Candidate) (don *domain.Donation, existed bool, err error) {
	if cand.ExternalTxnID == "" {
		return nil, false, fmt.Errorf("record donation: empty external transaction id")
	}

	unlock := l.keys.lock(cand.ExternalTxnID)
	defer unlock()

	existing, err := l.store.GetByExternalTxn(ctx, cand.ExternalTxnID)
	switch {
	case err == nil && existing.Status == domain.DonationCompleted:
		metrics.DuplicateEvents.Inc()
		l.log.Info("duplicate donation short-circuited", "txn", cand.ExternalTxnID)
		return existing, true, nil
	case err != nil && !errors.Is(err, domain.ErrDonationNotFound):
		return nil, false, fmt.Errorf("check existing donation: %w", err)
	}

	d := &domain.Donation{
		ID:            uuid.NewString(),
		ExternalTxnID: cand.ExternalTxnID,
		ExternalSubID: cand.ExternalSubID,
		Amount:        cand.Amount,
		Currency:      cand.Currency,
		Donor:         cand.Donor,
		Recurring:     cand.Recurring,
		CampaignID:    cand.CampaignID,
		Status:        domain.DonationCompleted,
		CreatedAt:     l.now(),
	}
	if err := l.store.Insert(ctx, d); err != nil {
		if errors.Is(err, domain.ErrDonationExists) {
			// Lost a race the key lock did not cover (e.g. another process).
			// Treat as the duplicate it is.
			if existing, gerr := l.store.GetByExternalTxn(ctx, cand.ExternalTxnID); gerr == nil {
				metrics.DuplicateEvents.Inc()
				return existing, true, nil
			}
		}
		return nil, false, fmt.Errorf("insert donation: %w", err)
	}

	metrics.DonationsRecorded.Inc()
	l.log.Info("donation recorded",
		"donation_id", d.ID, "txn", d.ExternalTxnID,
		"campaign", d.CampaignID, "amount", d.Amount, "currency", d.Currency)
	return d, false, nil
}

// ─── Keyed Mutex ────────────────────────────────────────────────────────────
// One lock per external transaction id, so concurrent duplicates of the
// same event serialize without stalling unrelated campaigns.

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	kl, ok := k.locks[key]
	if !ok {
		kl = &keyLock{}
		k.locks[key] = kl
	}
	kl.refs++
	k.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		k.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
