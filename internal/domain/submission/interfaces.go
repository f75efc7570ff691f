package submission

import (
	"context"

	"github.com/ganot/stepwise/internal/domain/activity"
)

// Repository stores submissions. Create must supersede the tenant's saved
// progress for the wizard in the same transaction.
type Repository interface {
	Create(ctx context.Context, tenantID string, rec *Record) error
	Get(ctx context.Context, tenantID, id string) (*Record, error)
}

// ActivityRecorder records wizard events.
type ActivityRecorder interface {
	Record(ctx context.Context, tenantID string, entry *activity.ActivityEntry)
}
