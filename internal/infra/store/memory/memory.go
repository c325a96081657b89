// Package memory is the in-memory store adapter, used by tests and by
// deployments that accept losing state on restart. It implements the same
// domain store interfaces as the SQLite adapter; the core never knows
// which one it holds.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/givepulse/givepulse/internal/domain"
)

// Store implements domain.DonationStore and domain.CampaignStore.
type Store struct {
	mu        sync.RWMutex
	donations []domain.Donation          // append-only ledger order
	byTxn     map[string]int             // external txn id → index of completed donation
	campaigns map[string]domain.Campaign
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byTxn:     make(map[string]int),
		campaigns: make(map[string]domain.Campaign),
	}
}

// ─── DonationStore ──────────────────────────────────────────────────────────

func (s *Store) GetByExternalTxn(ctx context.Context, txnID string) (*domain.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byTxn[txnID]
	if !ok {
		return nil, domain.ErrDonationNotFound
	}
	d := s.donations[i]
	return &d, nil
}

func (s *Store) Insert(ctx context.Context, d *domain.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byTxn[d.ExternalTxnID]; ok && s.donations[i].Status == domain.DonationCompleted {
		return domain.ErrDonationExists
	}
	s.donations = append(s.donations, *d)
	s.byTxn[d.ExternalTxnID] = len(s.donations) - 1
	return nil
}

func (s *Store) ListByCampaign(ctx context.Context, campaignID string) ([]domain.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Donation
	for _, d := range s.donations {
		if d.CampaignID == campaignID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) ListCompleted(ctx context.Context) ([]domain.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Donation
	for _, d := range s.donations {
		if d.Status == domain.DonationCompleted {
			out = append(out, d)
		}
	}
	return out, nil
}

// ─── CampaignStore ──────────────────────────────────────────────────────────

func (s *Store) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	out := c
	out.Milestones = append([]domain.Milestone(nil), c.Milestones...)
	return &out, nil
}

func (s *Store) Put(ctx context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *c
	stored.Milestones = append([]domain.Milestone(nil), c.Milestones...)
	s.campaigns[c.ID] = stored
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		c.Milestones = append([]domain.Milestone(nil), c.Milestones...)
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) ApplyDonation(ctx context.Context, campaignID string, amount int64) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	c.RaisedAmount += amount
	c.DonorCount++
	s.campaigns[campaignID] = c

	out := c
	out.Milestones = append([]domain.Milestone(nil), c.Milestones...)
	return &out, nil
}

func (s *Store) SetMilestoneTriggered(ctx context.Context, campaignID string, index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return false, domain.ErrCampaignNotFound
	}
	if index < 0 || index >= len(c.Milestones) {
		return false, fmt.Errorf("milestone index %d out of range for campaign %s", index, campaignID)
	}
	if c.Milestones[index].Triggered {
		// Another writer won the race on a stale snapshot.
		return false, nil
	}
	c.Milestones[index].Triggered = true
	s.campaigns[campaignID] = c
	return true, nil
}
