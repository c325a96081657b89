// Package executor wraps calls to the external payment API with bounded
// retries and error classification.
//
// Lifecycle per invocation:
//  1. Run the thunk
//  2. On failure, classify: non-retryable aborts immediately
//  3. Retryable failures back off exponentially with jitter, up to MaxRetries
//  4. Record exactly one performance metric — success, abort, or exhaustion
//
// The executor never mutates donation or campaign state; callers do that.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/givepulse/givepulse/internal/domain"
)

// Thunk is one attemptable call against the payment API.
type Thunk func(ctx context.Context) (any, error)

// Policy controls retry behavior for one invocation.
type Policy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultPolicy returns safe production defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// maxJitter bounds the uniform random delay added to each backoff step,
// spreading concurrent retriers against the payment API.
const maxJitter = time.Second

// ─── Error Kinds ────────────────────────────────────────────────────────────

// ErrorKind tags the terminal failure class of an invocation.
type ErrorKind string

const (
	KindNonRetryable   ErrorKind = "non_retryable"
	KindRetryExhausted ErrorKind = "retry_exhausted"
	KindCanceled       ErrorKind = "canceled"
)

// Error is the terminal error returned by Execute.
type Error struct {
	Kind      ErrorKind
	Operation string
	Retries   int
	Err       error // last underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s after %d retries: %v", e.Operation, e.Kind, e.Retries, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Recorder receives one performance metric per invocation.
type Recorder interface {
	Record(domain.PerformanceMetric)
}

// ─── Executor ───────────────────────────────────────────────────────────────

// Executor runs thunks with retry, backoff, and metric emission.
type Executor struct {
	recorder Recorder
	log      *slog.Logger

	// sleep and jitter are injectable for deterministic tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// New creates an executor reporting metrics to rec.
func New(rec Recorder, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		recorder: rec,
		log:      log.With("component", "executor"),
		sleep:    sleepCtx,
		jitter:   func() time.Duration { return time.Duration(rand.Int63n(int64(maxJitter))) },
	}
}

// Execute runs thunk under policy, returning the thunk's value or a
// terminal *Error. Attempt count is MaxRetries+1; the delay before retry
// n is min(BaseDelay * BackoffMultiplier^(n-1) + jitter, MaxDelay).
func (e *Executor) Execute(ctx context.Context, operation string, thunk Thunk, p Policy) (any, error) {
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(p, attempt) + e.jitter()
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
			e.log.Debug("retrying operation", "operation", operation, "attempt", attempt, "delay", delay)
			if err := e.sleep(ctx, delay); err != nil {
				e.record(operation, start, false, KindCanceled, attempt-1)
				return nil, &Error{Kind: KindCanceled, Operation: operation, Retries: attempt - 1, Err: err}
			}
		}

		val, err := thunk(ctx)
		if err == nil {
			e.record(operation, start, true, "", attempt)
			return val, nil
		}
		lastErr = err

		if domain.IsNonRetryable(err) {
			e.log.Warn("non-retryable failure", "operation", operation, "error", err)
			e.record(operation, start, false, KindNonRetryable, attempt)
			return nil, &Error{Kind: KindNonRetryable, Operation: operation, Retries: attempt, Err: err}
		}
		e.log.Warn("retryable failure", "operation", operation, "attempt", attempt, "error", err)
	}

	e.record(operation, start, false, KindRetryExhausted, p.MaxRetries)
	return nil, &Error{Kind: KindRetryExhausted, Operation: operation, Retries: p.MaxRetries, Err: lastErr}
}

// backoffDelay returns the exponential component before retry n (n >= 1).
func backoffDelay(p Policy, n int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= p.BackoffMultiplier
	}
	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	return time.Duration(d)
}

func (e *Executor) record(operation string, start time.Time, success bool, kind ErrorKind, retries int) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(domain.PerformanceMetric{
		Operation:  operation,
		Duration:   time.Since(start),
		Success:    success,
		ErrorKind:  string(kind),
		RetryCount: retries,
		At:         time.Now(),
	})
}

// sleepCtx blocks for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
