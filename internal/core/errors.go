package core

import "errors"

// Job failure kinds. Stage implementations wrap these so the orchestrator and
// the transports can classify failures with errors.Is.
var (
	ErrValidation  = errors.New("invalid job request")
	ErrAcquisition = errors.New("reference audio acquisition failed")
	ErrSynthesis   = errors.New("speech synthesis failed")
	ErrAlignment   = errors.New("alignment failed")
	ErrSubtitle    = errors.New("subtitle generation failed")
)

// Storage failure kinds.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrTransport      = errors.New("storage transport failure")
)

// ErrInvalidLocator indicates a locator string that cannot address any object.
var ErrInvalidLocator = errors.New("invalid storage locator")

// IsRetryable reports whether a storage failure may succeed on a later attempt.
// Only transport failures qualify; missing objects and denied access never do.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrAccessDenied) {
		return false
	}

	return errors.Is(err, ErrTransport)
}
