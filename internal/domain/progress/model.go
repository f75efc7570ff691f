package progress

import (
	"time"

	"github.com/ganot/stepwise/internal/domain/wizard"
)

// Record is saved progress as stored, with drafts still in wire form.
type Record struct {
	TenantID    string                `json:"tenant_id"`
	WizardID    string                `json:"wizard_id"`
	CurrentStep int                   `json:"current_step"`
	Drafts      wizard.RawDrafts      `json:"step_drafts"`
	Status      wizard.ProgressStatus `json:"status"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// StepWrite is one idempotent upsert of a step draft and the step pointer.
type StepWrite struct {
	WizardID    string
	CurrentStep int
	StepKey     wizard.StepKey
	Draft       []byte
	SavedAt     time.Time
}
