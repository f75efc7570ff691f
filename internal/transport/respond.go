package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ganot/stepwise/internal/api"
	"github.com/ganot/stepwise/internal/domain/progress"
	"github.com/ganot/stepwise/internal/domain/quota"
	"github.com/ganot/stepwise/internal/domain/submission"
	"github.com/ganot/stepwise/internal/domain/suggestion"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/repository"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, api.ErrorResponse{Error: api.ErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// decodeBody decodes a JSON body, rejecting unknown fields and trailing data.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return errors.New("request body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	if dec.More() {
		return errors.New("unexpected data after body")
	}
	return nil
}

// statusFor maps domain errors to HTTP statuses and error codes.
func statusFor(err error) (int, string, any) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr) && !errors.Is(err, wizard.ErrIncomplete):
		return http.StatusUnprocessableEntity, api.CodeValidation, verr
	case errors.Is(err, wizard.ErrIncomplete):
		if verr != nil {
			return http.StatusUnprocessableEntity, api.CodeIncomplete, verr
		}
		return http.StatusUnprocessableEntity, api.CodeIncomplete, nil
	case errors.Is(err, wizard.ErrUnknownWizard):
		return http.StatusNotFound, api.CodeUnknownWizard, nil
	case errors.Is(err, progress.ErrProgressNotFound),
		errors.Is(err, submission.ErrSubmissionNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, api.CodeNotFound, nil
	case errors.Is(err, wizard.ErrUnknownStep),
		errors.Is(err, wizard.ErrUnknownField),
		errors.Is(err, wizard.ErrStepOutOfRange),
		errors.Is(err, wizard.ErrMalformedDraft),
		errors.Is(err, progress.ErrInvalidInput),
		errors.Is(err, quota.ErrInvalidInput),
		errors.Is(err, suggestion.ErrInvalidInput),
		errors.Is(err, submission.ErrInvalidInput):
		return http.StatusBadRequest, api.CodeInvalidRequest, nil
	case errors.Is(err, quota.ErrQuotaExceeded):
		return http.StatusTooManyRequests, api.CodeQuotaExceeded, nil
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, api.CodeConflict, nil
	case errors.Is(err, suggestion.ErrProviderFailed):
		return http.StatusBadGateway, api.CodeSuggestionFailed, nil
	default:
		return http.StatusInternalServerError, api.CodeInternal, nil
	}
}
