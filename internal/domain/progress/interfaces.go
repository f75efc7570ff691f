package progress

import (
	"context"

	"github.com/ganot/stepwise/internal/domain/activity"
)

// Repository provides persistence for saved progress.
type Repository interface {
	Save(ctx context.Context, tenantID string, w *StepWrite) error
	Get(ctx context.Context, tenantID, wizardID string) (*Record, error)
}

// ActivityRecorder records wizard events.
type ActivityRecorder interface {
	Record(ctx context.Context, tenantID string, entry *activity.ActivityEntry)
}
