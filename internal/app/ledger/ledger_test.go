package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/givepulse/givepulse/internal/domain"
	"github.com/givepulse/givepulse/internal/infra/store/memory"
)

func candidate(txn string, amount int64) Candidate {
	return Candidate{
		ExternalTxnID: txn,
		Amount:        amount,
		Currency:      "usd",
		Donor:         "donor@example.org",
		CampaignID:    "camp_1",
	}
}

func TestRecord_NewDonation(t *testing.T) {
	l := New(memory.New(), nil)

	don, existed, err := l.Record(context.Background(), candidate("tx_1", 5000))
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if existed {
		t.Error("existed = true, want false for first sight")
	}
	if don.Status != domain.DonationCompleted {
		t.Errorf("Status = %s, want completed", don.Status)
	}
	if don.ID == "" {
		t.Error("internal id should be assigned")
	}
}

// Same event delivered twice sequentially: one record, second call returns
// the existing donation unchanged.
func TestRecord_SequentialDuplicate(t *testing.T) {
	store := memory.New()
	l := New(store, nil)
	ctx := context.Background()

	first, _, err := l.Record(ctx, candidate("tx_1", 50))
	if err != nil {
		t.Fatalf("first Record() error: %v", err)
	}
	second, existed, err := l.Record(ctx, candidate("tx_1", 50))
	if err != nil {
		t.Fatalf("second Record() error: %v", err)
	}
	if !existed {
		t.Error("existed = false, want true for redelivery")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate returned new record %s, want existing %s", second.ID, first.ID)
	}

	all, _ := store.ListCompleted(ctx)
	if len(all) != 1 {
		t.Errorf("ledger holds %d donations, want 1", len(all))
	}
}

// Concurrent duplicate delivery: exactly one insert wins, every call
// observes the same completed donation.
func TestRecord_ConcurrentDuplicate(t *testing.T) {
	store := memory.New()
	l := New(store, nil)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, existed, err := l.Record(ctx, candidate("tx_race", 50))
			if err != nil {
				t.Errorf("Record() error: %v", err)
				return
			}
			if !existed {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Errorf("fresh inserts = %d, want exactly 1", inserted)
	}
	all, _ := store.ListCompleted(ctx)
	if len(all) != 1 {
		t.Errorf("ledger holds %d donations, want 1", len(all))
	}
}

func TestRecord_DistinctTransactionsBothLedgered(t *testing.T) {
	store := memory.New()
	l := New(store, nil)
	ctx := context.Background()

	_, _, _ = l.Record(ctx, candidate("tx_1", 100))
	_, _, _ = l.Record(ctx, candidate("tx_2", 200))

	all, _ := store.ListCompleted(ctx)
	if len(all) != 2 {
		t.Errorf("ledger holds %d donations, want 2", len(all))
	}
}

func TestRecord_EmptyTxnRejected(t *testing.T) {
	l := New(memory.New(), nil)
	_, _, err := l.Record(context.Background(), candidate("", 100))
	if err == nil {
		t.Error("empty external transaction id should error")
	}
}
