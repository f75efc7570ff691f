package wizard

import (
	"context"

	domain "github.com/ganot/stepwise/internal/domain/wizard"
)

// ProgressStore saves and loads wizard progress. Load returns ErrNotFound
// when the tenant has no saved session.
type ProgressStore interface {
	Save(ctx context.Context, tenantID string, req domain.SaveRequest) error
	Load(ctx context.Context, tenantID, wizardID string) (*domain.Progress, error)
}

// SuggestionSource requests field suggestions. A quota rejection is
// reported as ErrQuotaExceeded.
type SuggestionSource interface {
	Suggest(ctx context.Context, tenantID string, req domain.SuggestionRequest) (*domain.Suggestion, error)
}

// QuotaSource reads the authoritative suggestion quota.
type QuotaSource interface {
	Get(ctx context.Context, tenantID string) (*domain.Quota, error)
}

// Submitter sends the final assembled payload.
type Submitter interface {
	Submit(ctx context.Context, tenantID string, sub domain.Submission) (*domain.Receipt, error)
}
