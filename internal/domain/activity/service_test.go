package activity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant1"

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		WizardID:     "tax-onboarding",
		StepKey:      activity.StringPtr("businessInfo"),
		ActivityType: activity.TypeStepSaved,
		Summary:      "saved businessInfo",
	}

	repo.On("Log", ctx, tenantID, entry).Return(nil)
	repo.On("List", ctx, tenantID, activity.ListActivityOptions{WizardID: "tax-onboarding", Limit: 50}).
		Return([]activity.ActivityEntry{*entry}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, tenantID, entry))
	require.False(t, entry.CreatedAt.IsZero())

	entries, err := svc.GetRecentActivity(ctx, tenantID, activity.ListActivityOptions{WizardID: "tax-onboarding"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	repo.AssertExpectations(t)
}

func TestActivityService_RejectsIncompleteEntries(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	require.ErrorIs(t, svc.LogActivity(context.Background(), "tenant1", nil), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(context.Background(), "", &activity.ActivityEntry{ActivityType: activity.TypeSubmitted}), activity.ErrInvalidInput)
}

func TestActivityService_RecordSwallowsErrors(t *testing.T) {
	repo := &mocks.ActivityRepository{}
	repo.On("Log", mock.Anything, "tenant1", mock.Anything).Return(errors.New("disk full"))

	svc := activity.NewService(repo, nil)
	svc.Record(context.Background(), "tenant1", &activity.ActivityEntry{ActivityType: activity.TypeSubmitted})
	repo.AssertNumberOfCalls(t, "Log", 1)

	var nilSvc *activity.Service
	nilSvc.Record(context.Background(), "tenant1", &activity.ActivityEntry{ActivityType: activity.TypeSubmitted})
}

func TestActivityService_ClampsLimit(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	repo.On("List", ctx, "tenant1", activity.ListActivityOptions{Limit: 500}).Return([]activity.ActivityEntry{}, nil)

	svc := activity.NewService(repo, nil)
	_, err := svc.GetRecentActivity(ctx, "tenant1", activity.ListActivityOptions{Limit: 10000})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
