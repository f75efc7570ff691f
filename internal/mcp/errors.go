package mcp

import (
	"errors"
	"fmt"

	"github.com/ganot/stepwise/internal/api"
	"github.com/ganot/stepwise/internal/domain/progress"
	"github.com/ganot/stepwise/internal/domain/quota"
	"github.com/ganot/stepwise/internal/domain/submission"
	"github.com/ganot/stepwise/internal/domain/suggestion"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/repository"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors map to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var verr *wizard.ValidationError
	switch {
	case errors.Is(err, wizard.ErrIncomplete):
		out := &APIError{Code: api.CodeIncomplete, Message: err.Error(), RecoveryHint: "Save a valid draft for every step, then submit again"}
		if errors.As(err, &verr) {
			out.Details = verr
		}
		return out
	case errors.As(err, &verr):
		return &APIError{Code: api.CodeValidation, Message: err.Error(), Details: verr, RecoveryHint: "Fix the listed fields and retry"}
	case errors.Is(err, wizard.ErrUnknownWizard):
		return &APIError{Code: api.CodeUnknownWizard, Message: err.Error(), RecoveryHint: "Omit wizard_id to use tax-onboarding"}
	case errors.Is(err, wizard.ErrUnknownStep),
		errors.Is(err, wizard.ErrUnknownField),
		errors.Is(err, wizard.ErrMalformedDraft),
		errors.Is(err, wizard.ErrStepOutOfRange):
		return &APIError{Code: api.CodeInvalidRequest, Message: err.Error(), RecoveryHint: "Call get_wizard_definition for step keys and fields"}
	case errors.Is(err, progress.ErrInvalidInput),
		errors.Is(err, quota.ErrInvalidInput),
		errors.Is(err, suggestion.ErrInvalidInput),
		errors.Is(err, submission.ErrInvalidInput):
		return &APIError{Code: api.CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, progress.ErrProgressNotFound):
		return &APIError{Code: api.CodeNotFound, Message: "no saved progress", RecoveryHint: "Start from step 1"}
	case errors.Is(err, submission.ErrSubmissionNotFound), errors.Is(err, repository.ErrNotFound):
		return &APIError{Code: api.CodeNotFound, Message: err.Error()}
	case errors.Is(err, quota.ErrQuotaExceeded):
		return &APIError{Code: api.CodeQuotaExceeded, Message: "suggestion quota exhausted", RecoveryHint: "Call get_quota for the reset time and fill fields manually until then"}
	case errors.Is(err, suggestion.ErrProviderFailed):
		return &APIError{Code: api.CodeSuggestionFailed, Message: "suggestion provider failed", RecoveryHint: "Retry later; quota was not consumed"}
	case errors.Is(err, repository.ErrConflict):
		return &APIError{Code: api.CodeConflict, Message: err.Error()}
	default:
		return nil
	}
}
