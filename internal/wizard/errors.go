package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationPending is returned when an operation is triggered while a
	// conflicting one is still in flight.
	ErrOperationPending = errors.New("operation pending")
	// ErrNotOnLastStep is returned by SubmitFinal before the last step.
	ErrNotOnLastStep = errors.New("not on the last step")
	// ErrCompleted is returned once the wizard has been submitted.
	ErrCompleted = errors.New("wizard already submitted")
	// ErrQuotaExhausted is the local pre-check failing; no request was sent.
	ErrQuotaExhausted = errors.New("suggestion quota exhausted")
	// ErrQuotaExceeded is the server rejecting a suggestion for quota.
	ErrQuotaExceeded = errors.New("suggestion quota exceeded")
	// ErrNotFound is returned by a ProgressStore with no saved session.
	ErrNotFound = errors.New("no saved progress")
)

// TransientError is a connectivity, timeout or server-side failure. The same
// call may succeed when retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RejectionError is the server refusing a request for a reason other than
// quota. Message is the server's message, possibly empty.
type RejectionError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Details any
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}
