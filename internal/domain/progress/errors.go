package progress

import "errors"

var (
	// ErrProgressNotFound indicates no active saved progress for the tenant and wizard.
	ErrProgressNotFound = errors.New("progress not found")
	// ErrInvalidInput indicates an invalid save request.
	ErrInvalidInput = errors.New("invalid progress input")
)
