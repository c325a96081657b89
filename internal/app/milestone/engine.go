// Package milestone evaluates campaign thresholds and fires each
// milestone's action set exactly once.
//
// Triggering is monotonic: the flag is persisted before any side effect is
// enqueued, so a later side-effect failure (or a redelivered event) can
// never fire the same milestone twice. The persist is a store-level
// compare-and-set, so two donations evaluating the same threshold from
// stale snapshots fan out its actions only once. A refund dropping the
// raised amount below an already-triggered threshold never re-arms it.
package milestone

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/givepulse/givepulse/internal/domain"
	"github.com/givepulse/givepulse/internal/infra/metrics"
)

// Enqueuer receives the automation tasks a triggered milestone fans out.
type Enqueuer interface {
	Enqueue(task domain.AutomationTask)
}

// Triggered describes one milestone fired during an evaluation pass.
type Triggered struct {
	Index     int
	Milestone domain.Milestone
	Tasks     []domain.AutomationTask
}

// Engine checks milestones against campaign aggregates.
type Engine struct {
	campaigns domain.CampaignStore
	queue     Enqueuer
	log       *slog.Logger
}

// New creates an engine persisting trigger flags to campaigns and fanning
// side effects out to queue.
func New(campaigns domain.CampaignStore, queue Enqueuer, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		campaigns: campaigns,
		queue:     queue,
		log:       log.With("component", "milestone"),
	}
}

// CheckMilestones walks the campaign's milestones in ascending threshold
// order and fires every untriggered milestone whose amount is now met. A
// single donation crossing several thresholds fires them all, in order,
// within this one pass.
func (e *Engine) CheckMilestones(ctx context.Context, c *domain.Campaign) ([]Triggered, error) {
	var fired []Triggered
	for i, m := range c.Milestones {
		if m.Triggered || c.RaisedAmount < m.Amount {
			continue
		}

		// Persist the one-shot flag first; enqueue only after it is durable.
		// The store's compare-and-set decides the winner when concurrent
		// donations evaluate the same stale snapshot.
		flipped, err := e.campaigns.SetMilestoneTriggered(ctx, c.ID, i)
		if err != nil {
			return fired, fmt.Errorf("persist milestone trigger: %w", err)
		}
		c.Milestones[i].Triggered = true
		m.Triggered = true
		if !flipped {
			// Another donation's pass already fired this milestone.
			continue
		}
		metrics.MilestonesTriggered.Inc()

		tasks := e.fanOut(c, m)
		for _, task := range tasks {
			e.queue.Enqueue(task)
		}
		e.log.Info("milestone triggered",
			"campaign", c.ID, "percentage", m.Percentage, "amount", m.Amount,
			"raised", c.RaisedAmount, "tasks", len(tasks))

		fired = append(fired, Triggered{Index: i, Milestone: m, Tasks: tasks})
	}
	return fired, nil
}

// fanOut builds one task per enabled action.
func (e *Engine) fanOut(c *domain.Campaign, m domain.Milestone) []domain.AutomationTask {
	payload := &domain.MilestonePayload{
		CampaignID:   c.ID,
		CampaignName: c.Name,
		Percentage:   m.Percentage,
		Amount:       m.Amount,
		Raised:       c.RaisedAmount,
	}

	var tasks []domain.AutomationTask
	add := func(kind domain.TaskKind) {
		tasks = append(tasks, domain.AutomationTask{
			ID:        uuid.NewString(),
			Kind:      kind,
			Milestone: payload,
		})
	}
	if m.Actions.NotifyDonor {
		add(domain.TaskMilestoneEmail)
	}
	if m.Actions.PostSocial {
		add(domain.TaskSocialPost)
	}
	if m.Actions.NotifyTeam {
		add(domain.TaskTeamNotification)
	}
	if m.Actions.UpdateCounter {
		add(domain.TaskCounterUpdate)
	}
	return tasks
}
