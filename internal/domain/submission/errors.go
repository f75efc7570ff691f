package submission

import "errors"

var (
	// ErrSubmissionNotFound indicates the submission doesn't exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrInvalidInput indicates an invalid submission request.
	ErrInvalidInput = errors.New("invalid submission input")
)
