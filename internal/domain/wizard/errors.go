package wizard

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownWizard indicates the wizard ID is not in the catalog.
	ErrUnknownWizard = errors.New("unknown wizard")
	// ErrUnknownStep indicates a step key the wizard does not define.
	ErrUnknownStep = errors.New("unknown step")
	// ErrUnknownField indicates a field the step draft does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrStepOutOfRange indicates a step number outside 1..totalSteps.
	ErrStepOutOfRange = errors.New("step out of range")
	// ErrMalformedDraft indicates a draft payload that cannot be decoded.
	ErrMalformedDraft = errors.New("malformed step draft")
	// ErrIncomplete indicates a submission missing steps or carrying invalid drafts.
	ErrIncomplete = errors.New("wizard incomplete")
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries all field errors for one step.
type ValidationError struct {
	Step   StepKey      `json:"step"`
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	return "invalid " + string(e.Step) + ": " + strings.Join(e.Messages(), "; ")
}

// Messages returns the user-facing messages in field order.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		out = append(out, fe.Message)
	}
	return out
}
