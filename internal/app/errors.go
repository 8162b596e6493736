/**
 * @description
 * Error taxonomy for the rotation engine. Five base kinds cover every failure
 * the engine surfaces: validation, not-found, duplicate-action, conflict, and
 * invalid-state. Specific failures either wrap one of the bases directly or
 * are store sentinels classified by Kind. Handlers pick an HTTP status from
 * the kind and use the error message as the stable reason string; nothing is
 * ever panicked across the engine boundary.
 */

package app

import (
	"errors"
	"fmt"

	"github.com/ajopool/pool-service/internal/store"
)

// Base error kinds.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrDuplicateAction = errors.New("duplicate action")
	ErrConflict        = errors.New("concurrent modification conflict")
	ErrState           = errors.New("invalid state for this action")
)

// Validation failures raised by the app layer itself.
var (
	ErrInvalidContributionAmount = fmt.Errorf("%w: contribution amount must be between 1 and 20", ErrValidation)
	ErrInvalidFrequency          = fmt.Errorf("%w: frequency must be weekly, biweekly or monthly", ErrValidation)
	ErrInvalidTotalRounds        = fmt.Errorf("%w: total rounds must be a positive integer", ErrValidation)
	ErrInvalidMemberCount        = fmt.Errorf("%w: member count must be a positive integer", ErrValidation)
	ErrMissingMemberIdentity     = fmt.Errorf("%w: a member id or email is required", ErrValidation)
	ErrMissingMemberDetails      = fmt.Errorf("%w: member name and email are required", ErrValidation)
)

// State failures raised by the app layer itself.
var (
	ErrEarlyPayoutNotAllowed = fmt.Errorf("%w: early payout is not allowed yet", ErrState)
	ErrRateLimited           = errors.New("too many requests, slow down")
)

// Reason strings shared between the status check and the rejection path so a
// caller sees the same explanation either way.
const (
	ReasonNotAllContributions = "Not all contributions have been received"
	ReasonRoundAlreadyPaid    = "The current round's payout has already been issued"
	ReasonPoolNotActive       = "The pool is not active"
)

// Kind maps any engine error onto its taxonomy base. It returns nil for
// unexpected internal errors, which callers should treat as opaque failures.
func Kind(err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, store.ErrPoolNotFound),
		errors.Is(err, store.ErrMemberNotFound):
		return ErrNotFound
	case errors.Is(err, ErrDuplicateAction),
		errors.Is(err, store.ErrAlreadyContributed),
		errors.Is(err, store.ErrAlreadyPaid):
		return ErrDuplicateAction
	case errors.Is(err, ErrValidation),
		errors.Is(err, store.ErrPoolFull),
		errors.Is(err, store.ErrPositionTaken),
		errors.Is(err, store.ErrDuplicateEmail),
		errors.Is(err, store.ErrInvalidReorder):
		return ErrValidation
	case errors.Is(err, ErrState),
		errors.Is(err, store.ErrPoolNotActive),
		errors.Is(err, store.ErrRoundClosed),
		errors.Is(err, store.ErrRoundMismatch),
		errors.Is(err, store.ErrRoundNotComplete),
		errors.Is(err, store.ErrNoRecipient),
		errors.Is(err, store.ErrContributionNotConfirmed):
		return ErrState
	case errors.Is(err, ErrConflict):
		return ErrConflict
	default:
		return nil
	}
}
