package mcp

import (
	"time"

	"github.com/ganot/stepwise/internal/domain/wizard"
)

// Draft is a step draft as a JSON object.
type Draft = map[string]any

type WizardParams struct {
	WizardID string `json:"wizard_id,omitempty" jsonschema:"wizard identifier, defaults to tax-onboarding"`
}

type SaveProgressParams struct {
	WizardID    string `json:"wizard_id,omitempty" jsonschema:"wizard identifier, defaults to tax-onboarding"`
	CurrentStep int    `json:"current_step" jsonschema:"1-based step the user is on after this save"`
	StepKey     string `json:"step_key" jsonschema:"key of the step whose draft is saved"`
	StepDraft   Draft  `json:"step_draft,omitempty" jsonschema:"field values of the step draft"`
}

type ValidateStepParams struct {
	WizardID  string `json:"wizard_id,omitempty" jsonschema:"wizard identifier, defaults to tax-onboarding"`
	StepKey   string `json:"step_key" jsonschema:"key of the step to validate"`
	StepDraft Draft  `json:"step_draft,omitempty" jsonschema:"field values of the step draft"`
}

type RequestSuggestionParams struct {
	WizardID      string           `json:"wizard_id,omitempty" jsonschema:"wizard identifier, defaults to tax-onboarding"`
	StepKey       string           `json:"step_key" jsonschema:"key of the step to suggest values for"`
	StepDraft     Draft            `json:"step_draft,omitempty" jsonschema:"current field values of the step"`
	PreviousSteps map[string]Draft `json:"previous_steps,omitempty" jsonschema:"drafts of earlier steps keyed by step key"`
}

type SubmitWizardParams struct {
	WizardID   string           `json:"wizard_id,omitempty" jsonschema:"wizard identifier, defaults to tax-onboarding"`
	StepDrafts map[string]Draft `json:"step_drafts" jsonschema:"drafts of every step keyed by step key"`
}

type GetRecentActivityParams struct {
	WizardID string `json:"wizard_id,omitempty" jsonschema:"only entries for this wizard"`
	Type     string `json:"type,omitempty" jsonschema:"only entries of this activity type"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of entries"`
	Offset   int    `json:"offset,omitempty" jsonschema:"entries to skip"`
}

type ProgressResult struct {
	WizardID    string           `json:"wizard_id"`
	CurrentStep int              `json:"current_step"`
	TotalSteps  int              `json:"total_steps"`
	StepDrafts  wizard.RawDrafts `json:"step_drafts"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ValidateStepResult struct {
	Valid  bool                `json:"valid"`
	Errors []wizard.FieldError `json:"errors,omitempty"`
}

type QuotaResult struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}

type SaveProgressResult struct {
	Saved       bool `json:"saved"`
	CurrentStep int  `json:"current_step"`
}
