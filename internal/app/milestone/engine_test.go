package milestone

import (
	"context"
	"testing"

	"github.com/givepulse/givepulse/internal/domain"
	"github.com/givepulse/givepulse/internal/infra/store/memory"
)

// captureQueue records enqueued tasks in order.
type captureQueue struct {
	tasks []domain.AutomationTask
}

func (q *captureQueue) Enqueue(t domain.AutomationTask) { q.tasks = append(q.tasks, t) }

func newTestEngine(t *testing.T, c *domain.Campaign) (*Engine, *memory.Store, *captureQueue) {
	t.Helper()
	store := memory.New()
	c.Milestones = domain.NormalizeMilestones(c.GoalAmount, c.Milestones)
	if err := store.Put(context.Background(), c); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	q := &captureQueue{}
	return New(store, q, nil), store, q
}

// A single donation of 600 against a 1000 goal crosses the 25% and 50%
// milestones in one pass, in threshold order.
func TestCheckMilestones_CrossesTwoAtOnce(t *testing.T) {
	c := &domain.Campaign{
		ID: "camp_1", Name: "Wells", GoalAmount: 1000, Active: true,
		RaisedAmount: 600, DonorCount: 1,
		Milestones: []domain.Milestone{
			{Percentage: 50, Actions: domain.MilestoneActions{PostSocial: true}},
			{Percentage: 25, Actions: domain.MilestoneActions{NotifyDonor: true, NotifyTeam: true}},
		},
	}
	eng, store, q := newTestEngine(t, c)

	fired, err := eng.CheckMilestones(context.Background(), c)
	if err != nil {
		t.Fatalf("CheckMilestones() error: %v", err)
	}
	if len(fired) != 2 {
		t.Fatalf("fired %d milestones, want 2", len(fired))
	}
	if fired[0].Milestone.Amount != 250 || fired[1].Milestone.Amount != 500 {
		t.Errorf("fired order = %d, %d; want 250 then 500", fired[0].Milestone.Amount, fired[1].Milestone.Amount)
	}

	// 25% fans out two tasks, 50% one; FIFO keeps that order.
	if len(q.tasks) != 3 {
		t.Fatalf("enqueued %d tasks, want 3", len(q.tasks))
	}
	wantKinds := []domain.TaskKind{domain.TaskMilestoneEmail, domain.TaskTeamNotification, domain.TaskSocialPost}
	for i, k := range wantKinds {
		if q.tasks[i].Kind != k {
			t.Errorf("task[%d].Kind = %s, want %s", i, q.tasks[i].Kind, k)
		}
	}

	stored, _ := store.Get(context.Background(), "camp_1")
	for i, m := range stored.Milestones {
		if !m.Triggered {
			t.Errorf("milestone %d not persisted as triggered", i)
		}
	}
}

// Once triggered, a milestone never fires again — no matter how many more
// evaluations run.
func TestCheckMilestones_OneShot(t *testing.T) {
	c := &domain.Campaign{
		ID: "camp_1", GoalAmount: 1000, RaisedAmount: 300,
		Milestones: []domain.Milestone{
			{Percentage: 25, Actions: domain.MilestoneActions{NotifyDonor: true}},
		},
	}
	eng, store, q := newTestEngine(t, c)
	ctx := context.Background()

	fired, err := eng.CheckMilestones(ctx, c)
	if err != nil {
		t.Fatalf("CheckMilestones() error: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("fired = %d, want 1", len(fired))
	}

	// Re-evaluate with an even higher total.
	cur, _ := store.Get(ctx, "camp_1")
	cur.RaisedAmount = 900
	fired, err = eng.CheckMilestones(ctx, cur)
	if err != nil {
		t.Fatalf("second CheckMilestones() error: %v", err)
	}
	if len(fired) != 0 {
		t.Errorf("second pass fired %d, want 0", len(fired))
	}
	if len(q.tasks) != 1 {
		t.Errorf("tasks enqueued = %d, want exactly 1", len(q.tasks))
	}
}

// Two donations can race past the same threshold with each evaluation
// holding a snapshot that predates the other's persist. The store-level
// compare-and-set lets only one of them fan out the milestone's actions.
func TestCheckMilestones_StaleSnapshotFansOutOnce(t *testing.T) {
	c := &domain.Campaign{
		ID: "camp_1", GoalAmount: 1000, RaisedAmount: 600,
		Milestones: []domain.Milestone{
			{Percentage: 50, Actions: domain.MilestoneActions{NotifyDonor: true}},
		},
	}
	eng, store, q := newTestEngine(t, c)
	ctx := context.Background()

	// Both snapshots observe the milestone untriggered and the total past
	// the threshold, as two concurrent donation passes would.
	first, _ := store.Get(ctx, "camp_1")
	first.RaisedAmount = 600
	second, _ := store.Get(ctx, "camp_1")
	second.RaisedAmount = 700

	fired, err := eng.CheckMilestones(ctx, first)
	if err != nil {
		t.Fatalf("first CheckMilestones() error: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("first pass fired %d, want 1", len(fired))
	}

	fired, err = eng.CheckMilestones(ctx, second)
	if err != nil {
		t.Fatalf("second CheckMilestones() error: %v", err)
	}
	if len(fired) != 0 {
		t.Errorf("stale-snapshot pass fired %d, want 0", len(fired))
	}
	if len(q.tasks) != 1 {
		t.Errorf("tasks enqueued = %d, want exactly 1", len(q.tasks))
	}
}

// A triggered milestone stays triggered even if the total later dips below
// its threshold and rises again.
func TestCheckMilestones_MonotonicAcrossRefund(t *testing.T) {
	c := &domain.Campaign{
		ID: "camp_1", GoalAmount: 1000, RaisedAmount: 300,
		Milestones: []domain.Milestone{
			{Percentage: 25, Actions: domain.MilestoneActions{PostSocial: true}},
		},
	}
	eng, store, q := newTestEngine(t, c)
	ctx := context.Background()

	_, _ = eng.CheckMilestones(ctx, c)

	// Simulate a refund dropping below threshold, then a new donation.
	cur, _ := store.Get(ctx, "camp_1")
	cur.RaisedAmount = 100
	_, _ = eng.CheckMilestones(ctx, cur)
	cur.RaisedAmount = 400
	_, _ = eng.CheckMilestones(ctx, cur)

	if len(q.tasks) != 1 {
		t.Errorf("tasks enqueued = %d, want 1 across refund cycle", len(q.tasks))
	}
}

func TestCheckMilestones_BelowThresholdFiresNothing(t *testing.T) {
	c := &domain.Campaign{
		ID: "camp_1", GoalAmount: 1000, RaisedAmount: 100,
		Milestones: []domain.Milestone{
			{Percentage: 25, Actions: domain.MilestoneActions{NotifyDonor: true}},
		},
	}
	eng, _, q := newTestEngine(t, c)

	fired, err := eng.CheckMilestones(context.Background(), c)
	if err != nil {
		t.Fatalf("CheckMilestones() error: %v", err)
	}
	if len(fired) != 0 || len(q.tasks) != 0 {
		t.Errorf("fired=%d tasks=%d, want 0/0", len(fired), len(q.tasks))
	}
}

func TestCheckMilestones_AllFourActions(t *testing.T) {
	c := &domain.Campaign{
		ID: "camp_1", GoalAmount: 1000, RaisedAmount: 1000,
		Milestones: []domain.Milestone{
			{Percentage: 100, Actions: domain.MilestoneActions{
				NotifyDonor: true, PostSocial: true, NotifyTeam: true, UpdateCounter: true,
			}},
		},
	}
	eng, _, q := newTestEngine(t, c)

	fired, _ := eng.CheckMilestones(context.Background(), c)
	if len(fired) != 1 {
		t.Fatalf("fired = %d, want 1", len(fired))
	}
	if len(q.tasks) != 4 {
		t.Errorf("tasks = %d, want one per enabled action", len(q.tasks))
	}
	for _, task := range q.tasks {
		if task.Milestone == nil {
			t.Errorf("task %s missing milestone payload", task.Kind)
		}
		if task.ID == "" {
			t.Errorf("task %s missing id", task.Kind)
		}
	}
}
