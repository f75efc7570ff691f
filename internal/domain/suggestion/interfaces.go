package suggestion

import (
	"context"

	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/wizard"
)

// Input is what a provider sees for one request.
type Input struct {
	WizardID string
	Step     wizard.StepDefinition
	Draft    wizard.StepDraft
	Previous wizard.Drafts
}

// Provider produces suggestions for a step.
type Provider interface {
	Suggest(ctx context.Context, in Input) (*wizard.Suggestion, error)
}

// QuotaReserver consumes and returns suggestion allowance.
type QuotaReserver interface {
	Reserve(ctx context.Context, tenantID string) (*wizard.Quota, error)
	Release(ctx context.Context, tenantID string) error
}

// ActivityRecorder records wizard events.
type ActivityRecorder interface {
	Record(ctx context.Context, tenantID string, entry *activity.ActivityEntry)
}
