package suggestion

import "errors"

var (
	// ErrProviderFailed indicates the suggestion provider could not answer.
	ErrProviderFailed = errors.New("suggestion provider failed")
	// ErrInvalidInput indicates an invalid suggestion request.
	ErrInvalidInput = errors.New("invalid suggestion input")
)
