package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/givepulse/givepulse/internal/domain"
)

// scriptedEffects records calls and fails or panics on demand.
type scriptedEffects struct {
	mu      sync.Mutex
	calls   []string
	failOn  map[string]error
	panicOn map[string]bool
}

func newScriptedEffects() *scriptedEffects {
	return &scriptedEffects{failOn: map[string]error{}, panicOn: map[string]bool{}}
}

func (e *scriptedEffects) record(campaign string) error {
	e.mu.Lock()
	e.calls = append(e.calls, campaign)
	e.mu.Unlock()
	if e.panicOn[campaign] {
		panic("effect exploded")
	}
	return e.failOn[campaign]
}

func (e *scriptedEffects) SendDonorEmail(ctx context.Context, p domain.EmailPayload) error {
	return e.record(p.CampaignID)
}
func (e *scriptedEffects) SendMilestoneEmail(ctx context.Context, p domain.MilestonePayload) error {
	return e.record(p.CampaignID)
}
func (e *scriptedEffects) PostSocial(ctx context.Context, p domain.MilestonePayload) error {
	return e.record(p.CampaignID)
}
func (e *scriptedEffects) NotifyTeam(ctx context.Context, p domain.MilestonePayload) error {
	return e.record(p.CampaignID)
}
func (e *scriptedEffects) SendReceipt(ctx context.Context, p domain.ReceiptPayload) error {
	return e.record(p.DonationID)
}
func (e *scriptedEffects) UpdatePublicCounter(ctx context.Context, p domain.MilestonePayload) error {
	return e.record(p.CampaignID)
}

func milestoneTask(campaign string) domain.AutomationTask {
	return domain.AutomationTask{
		ID:        uuid.NewString(),
		Kind:      domain.TaskSocialPost,
		Milestone: &domain.MilestonePayload{CampaignID: campaign, Percentage: 50},
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DrainInterval <= 0 {
		t.Error("DrainInterval must be positive")
	}
	if cfg.LogCapacity != 200 {
		t.Errorf("LogCapacity = %d, want 200", cfg.LogCapacity)
	}
}

func TestDrain_FIFOOrder(t *testing.T) {
	effects := newScriptedEffects()
	q := NewQueue(DefaultConfig(), effects, nil)

	for i := 0; i < 5; i++ {
		q.Enqueue(milestoneTask(fmt.Sprintf("camp-%d", i)))
	}
	q.Drain(context.Background())

	if len(effects.calls) != 5 {
		t.Fatalf("executed %d tasks, want 5", len(effects.calls))
	}
	for i, c := range effects.calls {
		if want := fmt.Sprintf("camp-%d", i); c != want {
			t.Errorf("call[%d] = %s, want %s (FIFO)", i, c, want)
		}
	}
	if q.Depth() != 0 {
		t.Errorf("Depth = %d after drain, want 0", q.Depth())
	}
}

// A failing task does not prevent subsequent tasks from executing: after N
// tasks with 1 failing, N-1 succeed.
func TestDrain_FailureIsolation(t *testing.T) {
	effects := newScriptedEffects()
	effects.failOn["camp-1"] = errors.New("smtp down")
	q := NewQueue(DefaultConfig(), effects, nil)

	for i := 0; i < 4; i++ {
		q.Enqueue(milestoneTask(fmt.Sprintf("camp-%d", i)))
	}
	q.Drain(context.Background())

	if len(effects.calls) != 4 {
		t.Fatalf("executed %d tasks, want all 4", len(effects.calls))
	}

	logs := q.Logs(0)
	var done, failed int
	for _, r := range logs {
		switch r.Status {
		case domain.TaskDone:
			done++
		case domain.TaskFailed:
			failed++
		}
	}
	if done != 3 || failed != 1 {
		t.Errorf("done=%d failed=%d, want 3/1", done, failed)
	}
}

// A panicking task is contained and recorded as failed.
func TestDrain_PanicIsolation(t *testing.T) {
	effects := newScriptedEffects()
	effects.panicOn["camp-0"] = true
	q := NewQueue(DefaultConfig(), effects, nil)

	q.Enqueue(milestoneTask("camp-0"))
	q.Enqueue(milestoneTask("camp-1"))
	q.Drain(context.Background())

	if len(effects.calls) != 2 {
		t.Fatalf("executed %d tasks, want 2", len(effects.calls))
	}
	logs := q.Logs(0)
	if logs[0].Status != domain.TaskFailed {
		t.Errorf("panicking task status = %s, want failed", logs[0].Status)
	}
	if logs[1].Status != domain.TaskDone {
		t.Errorf("following task status = %s, want done", logs[1].Status)
	}
}

// No task is silently dropped: every failure leaves a log record.
func TestDrain_FailureLeavesRecord(t *testing.T) {
	effects := newScriptedEffects()
	effects.failOn["camp-0"] = errors.New("network unreachable")
	q := NewQueue(DefaultConfig(), effects, nil)

	q.Enqueue(milestoneTask("camp-0"))
	q.Drain(context.Background())

	logs := q.Logs(1)
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	if logs[0].Error == "" {
		t.Error("failed record should carry the error message")
	}
}

func TestDispatch_MissingPayload(t *testing.T) {
	effects := newScriptedEffects()
	q := NewQueue(DefaultConfig(), effects, nil)

	q.Enqueue(domain.AutomationTask{ID: "t1", Kind: domain.TaskReceipt}) // no payload
	q.Drain(context.Background())

	logs := q.Logs(0)
	if logs[0].Status != domain.TaskFailed {
		t.Error("task with missing payload should fail, not panic")
	}
	if len(effects.calls) != 0 {
		t.Error("no effect should run for a malformed task")
	}
}

func TestDispatch_UnknownKind(t *testing.T) {
	q := NewQueue(DefaultConfig(), newScriptedEffects(), nil)
	q.Enqueue(domain.AutomationTask{ID: "t1", Kind: "teleport"})
	q.Drain(context.Background())

	logs := q.Logs(0)
	if logs[0].Status != domain.TaskFailed {
		t.Error("unknown kind should be recorded as failed")
	}
}

func TestLogs_BoundedAndNewestLast(t *testing.T) {
	effects := newScriptedEffects()
	q := NewQueue(Config{DrainInterval: DefaultConfig().DrainInterval, LogCapacity: 3}, effects, nil)

	for i := 0; i < 5; i++ {
		q.Enqueue(milestoneTask(fmt.Sprintf("camp-%d", i)))
	}
	q.Drain(context.Background())

	logs := q.Logs(0)
	if len(logs) != 3 {
		t.Fatalf("logs = %d, want capacity 3", len(logs))
	}
	if logs[2].Kind != domain.TaskSocialPost {
		t.Errorf("unexpected newest record: %+v", logs[2])
	}
}

func TestRun_WakesOnEnqueue(t *testing.T) {
	effects := newScriptedEffects()
	q := NewQueue(DefaultConfig(), effects, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	q.Enqueue(milestoneTask("camp-0"))

	// The wake signal, not the 3s ticker, should get this executed promptly.
	deadline := time.Now().Add(time.Second)
	for len(q.Logs(1)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("task not executed after wake signal")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}
