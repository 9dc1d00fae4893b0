package redeem

import "errors"

// Sentinel errors for expected redemption outcomes. Handlers check these with
// errors.Is and translate them to user-facing responses; anything else is a
// store failure and surfaces as a 500.
var (
	// Validation failures — the request can never succeed as-is.
	ErrRewardInactive      = errors.New("reward is not active")
	ErrInsufficientLevel   = errors.New("level too low for this reward")
	ErrInsufficientBalance = errors.New("insufficient exp balance")
	ErrOutOfStock          = errors.New("reward is out of stock")
	ErrLimitExceeded       = errors.New("per-user redemption limit reached")
	ErrShippingRequired    = errors.New("shipping address is required")

	// Conflicts — the request raced a competing mutation or arrived too late.
	ErrConcurrentConflict = errors.New("concurrent modification, retry")
	ErrAlreadyTerminal    = errors.New("redemption already in a terminal status")
	ErrNotCancellable     = errors.New("redemption cannot be cancelled in its current status")
	ErrNotOwner           = errors.New("redemption belongs to another user")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrTrackingRequired   = errors.New("tracking number required to mark shipped")

	// Missing rows.
	ErrRewardNotFound     = errors.New("reward not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrRedemptionNotFound = errors.New("redemption not found")
)

// IsValidation reports whether err is an eligibility or input failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrRewardInactive) ||
		errors.Is(err, ErrInsufficientLevel) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrShippingRequired)
}

// IsConflict reports whether err is a lost race or an out-of-order request.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentConflict) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrNotCancellable) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTrackingRequired)
}

// IsNotFound reports whether err refers to a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRewardNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrRedemptionNotFound)
}
