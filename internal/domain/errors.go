package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. NotFound and
// Duplicate are expected outcomes, not faults; callers branch on them
// with errors.Is instead of treating them as failures.

var (
	// Store outcomes
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrDonationNotFound = errors.New("donation not found")
	ErrDonationExists   = errors.New("completed donation already recorded for transaction")

	// Event outcomes
	ErrEventInvalid = errors.New("event missing id, type, or data")
)

// ─── Processor Error Classification ─────────────────────────────────────────

// Non-retryable processor error codes: failures known in advance to never
// succeed on retry. Everything else from the payment API is retryable.
const (
	CodeInvalidRequest = "invalid_request"
	CodeAuthentication = "authentication_error"
	CodePermission     = "permission_error"
)

// ProcessorError is a classified failure from the external payment API.
type ProcessorError struct {
	Code      string
	Operation string
	Message   string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor %s: %s: %s", e.Operation, e.Code, e.Message)
}

// NonRetryable reports whether retrying can never succeed.
func (e *ProcessorError) NonRetryable() bool {
	switch e.Code {
	case CodeInvalidRequest, CodeAuthentication, CodePermission:
		return true
	}
	return false
}

// IsNonRetryable reports whether err (or anything it wraps) is classified
// as a non-retryable failure.
func IsNonRetryable(err error) bool {
	var nr interface{ NonRetryable() bool }
	if errors.As(err, &nr) {
		return nr.NonRetryable()
	}
	return false
}
