// Package bot implements the processing core: the parser/filter that turns
// raw platform messages into eligible domain messages, and the orchestrator
// that drives discovery, rendering, replying, and state persistence.
//
// This file centralizes the filter's skip reasons as sentinel errors so the
// orchestrator can log them at the right level and tests can assert exact
// exclusion causes.
package bot

import "errors"

var (
	// ErrNoInspectLinks means the message text contained no inspect links.
	ErrNoInspectLinks = errors.New("no inspect links in message")

	// ErrHasAttachments means the message already carries native media and
	// likely already shows the item.
	ErrHasAttachments = errors.New("message already has attachments")

	// ErrAccountFiltered means the isolation filter excluded the author.
	ErrAccountFiltered = errors.New("author excluded by account filter")

	// ErrAlreadyResponded means a successful reply is already recorded.
	ErrAlreadyResponded = errors.New("message already responded to")

	// ErrAttemptsExhausted means the stored failed-attempt count exceeds
	// the configured cap.
	ErrAttemptsExhausted = errors.New("message retry attempts exhausted")
)

// IsSkip reports whether err is one of the filter's expected exclusion
// reasons, as opposed to an operational failure such as a store error.
func IsSkip(err error) bool {
	return errors.Is(err, ErrNoInspectLinks) ||
		errors.Is(err, ErrHasAttachments) ||
		errors.Is(err, ErrAccountFiltered) ||
		errors.Is(err, ErrAlreadyResponded) ||
		errors.Is(err, ErrAttemptsExhausted)
}
