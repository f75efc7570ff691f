package wizard

import (
	"encoding/json"
	"time"
)

// StepKey identifies a step independently of its position.
type StepKey string

// StepDraft is the collected input of one step. Each step key has exactly one
// concrete draft type.
type StepDraft interface {
	StepKey() StepKey
}

// Drafts holds the drafts of every step touched so far.
type Drafts map[StepKey]StepDraft

// RawDrafts is the undecoded wire form of Drafts.
type RawDrafts map[StepKey]json.RawMessage

// Clone returns a shallow copy of the map. Draft values are immutable once
// stored, so sharing them is safe.
func (d Drafts) Clone() Drafts {
	out := make(Drafts, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ProgressStatus is the lifecycle status of saved progress.
type ProgressStatus string

const (
	StatusActive     ProgressStatus = "active"
	StatusSuperseded ProgressStatus = "superseded"
)

// Progress is the saved state of one tenant's wizard session.
type Progress struct {
	TenantID    string         `json:"tenantId"`
	WizardID    string         `json:"wizardId"`
	CurrentStep int            `json:"currentStep"`
	Drafts      Drafts         `json:"stepDrafts"`
	Status      ProgressStatus `json:"status"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// SaveRequest upserts one step draft and the step pointer.
type SaveRequest struct {
	WizardID    string
	CurrentStep int
	StepKey     StepKey
	Draft       StepDraft
}

// Quota is a tenant's suggestion allowance for the current billing period.
type Quota struct {
	Used     int       `json:"used"`
	Limit    int       `json:"limit"`
	ResetsAt time.Time `json:"resetsAt"`
}

// Remaining returns how many suggestions are left, never below zero.
func (q Quota) Remaining() int {
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// Exhausted reports whether the local count says no suggestions are left.
func (q Quota) Exhausted() bool {
	return q.Used >= q.Limit
}

// SuggestionRequest asks for field suggestions for the active step.
type SuggestionRequest struct {
	WizardID      string
	StepKey       StepKey
	Draft         StepDraft
	PreviousSteps Drafts
}

// Suggestion is a suggestion payload for one step.
type Suggestion struct {
	Explanation   string         `json:"explanation"`
	Confidence    *int           `json:"confidence,omitempty"`
	Sources       []string       `json:"sources,omitempty"`
	SuggestedData map[string]any `json:"suggestedData,omitempty"`
}

// SuggestionUse records that a step received a suggestion.
type SuggestionUse struct {
	StepKey    StepKey  `json:"stepKey"`
	Confidence *int     `json:"confidence,omitempty"`
	Applied    []string `json:"applied,omitempty"`
}

// Submission is the full assembled payload of a completed wizard.
type Submission struct {
	WizardID    string          `json:"wizardId"`
	Drafts      Drafts          `json:"stepDrafts"`
	Suggestions []SuggestionUse `json:"suggestions,omitempty"`
}

// Receipt acknowledges an accepted submission.
type Receipt struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
}
