// Package automation decouples side effects from event ingestion.
//
// Producers append tasks; one worker drains them FIFO on an interval or on
// an explicit wake signal after enqueue. Each task execution is isolated —
// a panicking or failing task is logged and recorded, and the next task
// still runs. Task failures never propagate to the ingestion path.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/givepulse/givepulse/internal/domain"
	"github.com/givepulse/givepulse/internal/infra/metrics"
)

// Effects is the outbound side-effect surface. Implementations are
// fire-and-forget collaborators: email, social, team chat. The queue only
// logs their failures.
type Effects interface {
	SendDonorEmail(ctx context.Context, p domain.EmailPayload) error
	SendMilestoneEmail(ctx context.Context, p domain.MilestonePayload) error
	PostSocial(ctx context.Context, p domain.MilestonePayload) error
	NotifyTeam(ctx context.Context, p domain.MilestonePayload) error
	SendReceipt(ctx context.Context, p domain.ReceiptPayload) error
	UpdatePublicCounter(ctx context.Context, p domain.MilestonePayload) error
}

// Config controls queue behavior.
type Config struct {
	DrainInterval time.Duration // worker tick (default 3s)
	LogCapacity   int           // automation log ring size (default 200)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{DrainInterval: 3 * time.Second, LogCapacity: 200}
}

// Queue is the single-consumer, multi-producer automation queue.
type Queue struct {
	mu      sync.Mutex
	tasks   []domain.AutomationTask
	records []domain.AutomationRecord

	wake    chan struct{}
	effects Effects
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

// NewQueue creates a queue executing tasks against effects.
func NewQueue(cfg Config, effects Effects, log *slog.Logger) *Queue {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 3 * time.Second
	}
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = 200
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		wake:    make(chan struct{}, 1),
		effects: effects,
		cfg:     cfg,
		log:     log.With("component", "automation"),
		now:     time.Now,
	}
}

// Enqueue appends a task and nudges the worker. Never blocks.
func (q *Queue) Enqueue(task domain.AutomationTask) {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = q.now()
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	depth := len(q.tasks)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Depth returns the number of waiting tasks.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Run drains the queue until ctx is done. The worker wakes on enqueue and
// on every tick, so liveness survives a missed signal.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
		q.Drain(ctx)
	}
}

// Drain executes every currently queued task in FIFO order. Exported so
// tests (and shutdown) can drive the worker without wall-clock waits.
func (q *Queue) Drain(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			metrics.QueueDepth.Set(0)
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		depth := len(q.tasks)
		q.mu.Unlock()

		metrics.QueueDepth.Set(float64(depth))
		q.runTask(ctx, task)
	}
}

// runTask executes one task in isolation: panics and errors are recorded,
// never re-raised.
func (q *Queue) runTask(ctx context.Context, task domain.AutomationTask) {
	start := q.now()
	task.Attempts++

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return q.dispatch(ctx, task)
	}()

	rec := domain.AutomationRecord{
		TaskID:   task.ID,
		Kind:     task.Kind,
		Status:   domain.TaskDone,
		Duration: q.now().Sub(start),
		At:       q.now(),
	}
	if err != nil {
		rec.Status = domain.TaskFailed
		rec.Error = err.Error()
		q.log.Warn("automation task failed", "task", task.ID, "kind", task.Kind, "error", err)
	} else {
		q.log.Debug("automation task done", "task", task.ID, "kind", task.Kind)
	}
	metrics.AutomationTasks.WithLabelValues(string(task.Kind), string(rec.Status)).Inc()
	q.appendRecord(rec)
}

// dispatch matches the task variant exhaustively onto the effect surface.
func (q *Queue) dispatch(ctx context.Context, task domain.AutomationTask) error {
	switch task.Kind {
	case domain.TaskThankYouEmail:
		if task.Email == nil {
			return fmt.Errorf("%s task missing email payload", task.Kind)
		}
		return q.effects.SendDonorEmail(ctx, *task.Email)
	case domain.TaskMilestoneEmail:
		if task.Milestone == nil {
			return fmt.Errorf("%s task missing milestone payload", task.Kind)
		}
		return q.effects.SendMilestoneEmail(ctx, *task.Milestone)
	case domain.TaskSocialPost:
		if task.Milestone == nil {
			return fmt.Errorf("%s task missing milestone payload", task.Kind)
		}
		return q.effects.PostSocial(ctx, *task.Milestone)
	case domain.TaskTeamNotification:
		if task.Milestone == nil {
			return fmt.Errorf("%s task missing milestone payload", task.Kind)
		}
		return q.effects.NotifyTeam(ctx, *task.Milestone)
	case domain.TaskReceipt:
		if task.Receipt == nil {
			return fmt.Errorf("%s task missing receipt payload", task.Kind)
		}
		return q.effects.SendReceipt(ctx, *task.Receipt)
	case domain.TaskCounterUpdate:
		if task.Milestone == nil {
			return fmt.Errorf("%s task missing milestone payload", task.Kind)
		}
		return q.effects.UpdatePublicCounter(ctx, *task.Milestone)
	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// ─── Automation Log ─────────────────────────────────────────────────────────

func (q *Queue) appendRecord(rec domain.AutomationRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.records) >= q.cfg.LogCapacity {
		q.records = q.records[1:]
	}
	q.records = append(q.records, rec)
}

// Logs returns up to limit of the most recent execution records, newest
// last.
func (q *Queue) Logs(limit int) []domain.AutomationRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.records) {
		limit = len(q.records)
	}
	start := len(q.records) - limit
	out := make([]domain.AutomationRecord, limit)
	copy(out, q.records[start:])
	return out
}
