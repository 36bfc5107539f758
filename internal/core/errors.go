package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced quest, user, claim, completion,
// rotation or condition set does not exist.
var ErrNotFound = errors.New("not found")

// State conflicts. A conflicting command is rejected before any mutation and
// must be retried by the caller with fresh data.
var (
	ErrClaimLimitExceeded = errors.New("claim limit exceeded")
	ErrDuplicateClaim     = errors.New("user already holds a claim on this quest")
	ErrClaimNotPending    = errors.New("claim is not pending")
	ErrCheckpointSkipped  = errors.New("previous checkpoint not approved")
	ErrAlreadyResolved    = errors.New("completion already resolved")
	ErrCompletionPending  = errors.New("completion already awaiting approval")
	ErrClaimRequired      = errors.New("quest requires an approved claim")
	ErrSelfApproval       = errors.New("self-approval is disabled")
	ErrNotClaimant        = errors.New("claim belongs to another user")
	ErrNotApprover        = errors.New("user may not approve")
	ErrNotMember          = errors.New("user is not a member of this guild")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrVersionConflict    = errors.New("rotation was modified concurrently")
	ErrMarketClosed       = errors.New("market is closed")
	ErrQuestNotAvailable  = errors.New("quest is not available")
	ErrItemLocked         = errors.New("market item is locked")
)

// ValidationError describes a malformed definition (quest, condition set,
// rotation). It is surfaced at definition time, never at evaluation time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is one of the state-conflict sentinels
func IsConflict(err error) bool {
	for _, sentinel := range []error{
		ErrClaimLimitExceeded, ErrDuplicateClaim, ErrClaimNotPending,
		ErrCheckpointSkipped, ErrAlreadyResolved, ErrCompletionPending,
		ErrClaimRequired, ErrSelfApproval,
		ErrNotClaimant, ErrNotApprover, ErrNotMember,
		ErrInsufficientFunds, ErrVersionConflict, ErrMarketClosed,
		ErrQuestNotAvailable, ErrItemLocked,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
