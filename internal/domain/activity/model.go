package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeStepSaved        ActivityType = "step_saved"
	TypeSuggestionIssued ActivityType = "suggestion_issued"
	TypeSuggestionFailed ActivityType = "suggestion_failed"
	TypeQuotaRejected    ActivityType = "quota_rejected"
	TypeQuotaRollover    ActivityType = "quota_rollover"
	TypeSubmitted        ActivityType = "submitted"
)

// ActivityEntry represents an event in a tenant's activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	TenantID     string       `json:"tenant_id"`
	WizardID     string       `json:"wizard_id"`
	StepKey      *string      `json:"step_key,omitempty"`
	SubmissionID *string      `json:"submission_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
