package quota

import (
	"context"
	"time"
)

// Repository provides persistence for quota counters.
type Repository interface {
	Get(ctx context.Context, tenantID string) (*Usage, error)
	Create(ctx context.Context, usage *Usage) error
	Increment(ctx context.Context, tenantID string, limit int) (*Usage, error)
	Decrement(ctx context.Context, tenantID string) error
	// Reset starts a new period only if the counter's period ended at or
	// before now; an already rolled counter is left alone.
	Reset(ctx context.Context, tenantID string, now, resetsAt time.Time) error
	ResetExpired(ctx context.Context, now, resetsAt time.Time) (int64, error)
}
