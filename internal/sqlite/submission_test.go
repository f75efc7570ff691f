package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ganot/stepwise/internal/domain/submission"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestSubmissionRepository_CreateAndGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	rec := &submission.Record{
		ID:          "sub-1",
		WizardID:    wizard.TaxOnboardingID,
		Payload:     json.RawMessage(`{"wizardId":"tax-onboarding"}`),
		SubmittedAt: at,
	}
	require.NoError(t, repo.Create(ctx, "tenant1", rec))
	require.ErrorIs(t, repo.Create(ctx, "tenant1", rec), repository.ErrConflict)

	got, err := repo.Get(ctx, "tenant1", "sub-1")
	require.NoError(t, err)
	require.Equal(t, "tenant1", got.TenantID)
	require.JSONEq(t, `{"wizardId":"tax-onboarding"}`, string(got.Payload))
	require.True(t, got.SubmittedAt.Equal(at))

	_, err = repo.Get(ctx, "tenant2", "sub-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
