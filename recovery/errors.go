package recovery

import "errors"

var (
	// ErrNotFound indicates an account or question lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrNoRecoveryConfigured indicates the account exists but has no
	// security answers bound, so this recovery path is unavailable.
	ErrNoRecoveryConfigured = errors.New("no security questions set up")
	// ErrValidation indicates a malformed or incomplete submission.
	ErrValidation = errors.New("invalid submission")
	// ErrVerificationFailed indicates at least one answer did not match.
	// It is deliberately generic: nothing identifies which answer failed.
	ErrVerificationFailed = errors.New("one or more security answers are incorrect")
	// ErrSessionExpired indicates a reset was attempted without a live
	// verified recovery session. The flow must restart from Identify.
	ErrSessionExpired = errors.New("recovery session expired")
)
