// Package api holds the REST wire format shared by the server and the client.
package api

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/ganot/stepwise/internal/domain/wizard"
)

// Error codes carried in ErrorBody.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidation       = "VALIDATION_FAILED"
	CodeIncomplete       = "INCOMPLETE"
	CodeNotFound         = "NOT_FOUND"
	CodeUnknownWizard    = "UNKNOWN_WIZARD"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeQuotaExceeded    = "QUOTA_EXCEEDED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeConflict         = "CONFLICT"
	CodeSuggestionFailed = "SUGGESTION_UNAVAILABLE"
	CodeInternal         = "INTERNAL"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ProgressResponse is saved progress on the wire.
type ProgressResponse struct {
	WizardID    string           `json:"wizardId"`
	CurrentStep int              `json:"currentStep"`
	StepDrafts  wizard.RawDrafts `json:"stepDrafts"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// SaveProgressRequest upserts one step draft and the step pointer.
type SaveProgressRequest struct {
	CurrentStep int             `json:"currentStep"`
	StepKey     wizard.StepKey  `json:"stepKey"`
	StepDraft   json.RawMessage `json:"stepDraft"`
}

// SuggestionRequest asks for suggestions for one step.
type SuggestionRequest struct {
	StepKey       wizard.StepKey   `json:"stepKey"`
	StepDraft     json.RawMessage  `json:"stepDraft"`
	PreviousSteps wizard.RawDrafts `json:"previousSteps,omitempty"`
}

// SubmissionRequest carries the complete wizard.
type SubmissionRequest struct {
	StepDrafts  wizard.RawDrafts       `json:"stepDrafts"`
	Suggestions []wizard.SuggestionUse `json:"suggestions,omitempty"`
}

// ProgressPath returns the progress resource of a tenant's wizard.
func ProgressPath(tenantID, wizardID string) string {
	return wizardPath(tenantID, wizardID) + "/progress"
}

// SuggestionsPath returns the suggestions resource of a tenant's wizard.
func SuggestionsPath(tenantID, wizardID string) string {
	return wizardPath(tenantID, wizardID) + "/suggestions"
}

// SubmissionsPath returns the submissions resource of a tenant's wizard.
func SubmissionsPath(tenantID, wizardID string) string {
	return wizardPath(tenantID, wizardID) + "/submissions"
}

// DefinitionPath returns the definition resource of a tenant's wizard.
func DefinitionPath(tenantID, wizardID string) string {
	return wizardPath(tenantID, wizardID)
}

// QuotaPath returns the quota resource of a tenant.
func QuotaPath(tenantID string) string {
	return tenantPath(tenantID) + "/quota"
}

// ActivityPath returns the activity resource of a tenant.
func ActivityPath(tenantID string) string {
	return tenantPath(tenantID) + "/activity"
}

func tenantPath(tenantID string) string {
	return "/v1/tenants/" + url.PathEscape(tenantID)
}

func wizardPath(tenantID, wizardID string) string {
	return tenantPath(tenantID) + "/wizards/" + url.PathEscape(wizardID)
}
