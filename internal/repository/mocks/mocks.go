package mocks

import (
	"context"
	"time"

	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/progress"
	"github.com/ganot/stepwise/internal/domain/quota"
	"github.com/ganot/stepwise/internal/domain/submission"
	"github.com/stretchr/testify/mock"
)

// ProgressRepository is a mock for progress.Repository.
type ProgressRepository struct {
	mock.Mock
}

func (m *ProgressRepository) Save(ctx context.Context, tenantID string, w *progress.StepWrite) error {
	args := m.Called(ctx, tenantID, w)
	return args.Error(0)
}

func (m *ProgressRepository) Get(ctx context.Context, tenantID, wizardID string) (*progress.Record, error) {
	args := m.Called(ctx, tenantID, wizardID)
	if rec, ok := args.Get(0).(*progress.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

// QuotaRepository is a mock for quota.Repository.
type QuotaRepository struct {
	mock.Mock
}

func (m *QuotaRepository) Get(ctx context.Context, tenantID string) (*quota.Usage, error) {
	args := m.Called(ctx, tenantID)
	if u, ok := args.Get(0).(*quota.Usage); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QuotaRepository) Create(ctx context.Context, usage *quota.Usage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

func (m *QuotaRepository) Increment(ctx context.Context, tenantID string, limit int) (*quota.Usage, error) {
	args := m.Called(ctx, tenantID, limit)
	if u, ok := args.Get(0).(*quota.Usage); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QuotaRepository) Decrement(ctx context.Context, tenantID string) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *QuotaRepository) Reset(ctx context.Context, tenantID string, now, resetsAt time.Time) error {
	args := m.Called(ctx, tenantID, now, resetsAt)
	return args.Error(0)
}

func (m *QuotaRepository) ResetExpired(ctx context.Context, now, resetsAt time.Time) (int64, error) {
	args := m.Called(ctx, now, resetsAt)
	return args.Get(0).(int64), args.Error(1)
}

// SubmissionRepository is a mock for submission.Repository.
type SubmissionRepository struct {
	mock.Mock
}

func (m *SubmissionRepository) Create(ctx context.Context, tenantID string, rec *submission.Record) error {
	args := m.Called(ctx, tenantID, rec)
	return args.Error(0)
}

func (m *SubmissionRepository) Get(ctx context.Context, tenantID, id string) (*submission.Record, error) {
	args := m.Called(ctx, tenantID, id)
	if rec, ok := args.Get(0).(*submission.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, tenantID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRecorder is a mock for the services' ActivityRecorder.
type ActivityRecorder struct {
	mock.Mock
}

func (m *ActivityRecorder) Record(ctx context.Context, tenantID string, entry *activity.ActivityEntry) {
	m.Called(ctx, tenantID, entry)
}
