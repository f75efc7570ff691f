package quota

import "errors"

var (
	// ErrQuotaExceeded indicates the tenant has used its whole allowance.
	ErrQuotaExceeded = errors.New("suggestion quota exceeded")
	// ErrInvalidInput indicates an invalid quota request.
	ErrInvalidInput = errors.New("invalid quota input")
)
