// Package router maps inbound payment-processor events to handlers.
//
// State machine per event: received → validated → dispatched →
// {handled | rejected | unsupported}. Validation failures are permanent
// rejections, never retried. Unknown kinds are acknowledged, logged, and
// dropped — a future event type must not break ingestion. Handler failures
// surface as a distinct outcome carrying whether redelivery could help.
package router

import (
	"context"
	"errors"
	"log/slog"

	"github.com/givepulse/givepulse/internal/domain"
	"github.com/givepulse/givepulse/internal/infra/metrics"
)

// Outcome is the terminal state of one event's routing.
type Outcome string

const (
	OutcomeHandled     Outcome = "handled"
	OutcomeRejected    Outcome = "rejected"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeFailed      Outcome = "failed"
)

// Result reports how an event was routed. For OutcomeFailed, Retryable
// tells the transport whether signalling redelivery to the sender could
// succeed; idempotent ledgering makes redelivery safe either way.
type Result struct {
	Outcome   Outcome
	Err       error
	Retryable bool
}

// Handler processes one validated event of a matched kind.
type Handler func(ctx context.Context, ev domain.Event) error

// Router dispatches events against a fixed handler table.
type Router struct {
	handlers map[string]Handler
	log      *slog.Logger
}

// New creates an empty router.
func New(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		handlers: make(map[string]Handler),
		log:      log.With("component", "router"),
	}
}

// Register binds a handler to an event kind. Later registrations replace
// earlier ones.
func (r *Router) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

// Dispatch validates ev and runs the matching handler.
func (r *Router) Dispatch(ctx context.Context, ev domain.Event) Result {
	if !ev.Valid() {
		r.log.Warn("event rejected", "event", ev.ID, "type", ev.Type, "error", domain.ErrEventInvalid)
		metrics.EventsRouted.WithLabelValues(string(OutcomeRejected)).Inc()
		return Result{Outcome: OutcomeRejected, Err: domain.ErrEventInvalid}
	}

	h, ok := r.handlers[ev.Type]
	if !ok {
		r.log.Info("unsupported event kind acknowledged", "event", ev.ID, "type", ev.Type)
		metrics.EventsRouted.WithLabelValues(string(OutcomeUnsupported)).Inc()
		return Result{Outcome: OutcomeUnsupported}
	}

	if err := h(ctx, ev); err != nil {
		// Payload-level validation failures are permanent rejections,
		// same as envelope-level ones.
		if errors.Is(err, domain.ErrEventInvalid) {
			r.log.Warn("event rejected", "event", ev.ID, "type", ev.Type, "error", err)
			metrics.EventsRouted.WithLabelValues(string(OutcomeRejected)).Inc()
			return Result{Outcome: OutcomeRejected, Err: err}
		}
		retryable := !domain.IsNonRetryable(err)
		r.log.Error("event handler failed",
			"event", ev.ID, "type", ev.Type, "retryable", retryable, "error", err)
		metrics.EventsRouted.WithLabelValues(string(OutcomeFailed)).Inc()
		return Result{Outcome: OutcomeFailed, Err: err, Retryable: retryable}
	}

	metrics.EventsRouted.WithLabelValues(string(OutcomeHandled)).Inc()
	return Result{Outcome: OutcomeHandled}
}
