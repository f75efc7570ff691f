package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ganot/stepwise/internal/domain/progress"
	"github.com/ganot/stepwise/internal/domain/submission"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/repository"
	"github.com/stretchr/testify/require"
)

func stepWrite(step int, key wizard.StepKey, draft string, at time.Time) *progress.StepWrite {
	return &progress.StepWrite{
		WizardID:    wizard.TaxOnboardingID,
		CurrentStep: step,
		StepKey:     key,
		Draft:       []byte(draft),
		SavedAt:     at,
	}
}

func TestProgressRepository_SaveAndGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProgressRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "tenant1", wizard.TaxOnboardingID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Save(ctx, "tenant1", stepWrite(2, wizard.StepBusinessInfo, `{"country":"US"}`, at)))
	require.NoError(t, repo.Save(ctx, "tenant1", stepWrite(3, wizard.StepTaxRates, `{"stateRate":"6"}`, at.Add(time.Minute))))

	got, err := repo.Get(ctx, "tenant1", wizard.TaxOnboardingID)
	require.NoError(t, err)
	require.Equal(t, 3, got.CurrentStep)
	require.Equal(t, wizard.StatusActive, got.Status)
	require.Len(t, got.Drafts, 2)
	require.JSONEq(t, `{"country":"US"}`, string(got.Drafts[wizard.StepBusinessInfo]))
	require.True(t, got.UpdatedAt.Equal(at.Add(time.Minute)))

	_, err = repo.Get(ctx, "tenant2", wizard.TaxOnboardingID)
	require.ErrorIs(t, err, repository.ErrNotFound, "progress is tenant scoped")
}

func TestProgressRepository_SaveIsIdempotent(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProgressRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	w := stepWrite(2, wizard.StepBusinessInfo, `{"country":"US","stateProvince":"CA","city":"SF"}`, at)

	require.NoError(t, repo.Save(ctx, "tenant1", w))
	first, err := repo.Get(ctx, "tenant1", wizard.TaxOnboardingID)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, "tenant1", w))
	second, err := repo.Get(ctx, "tenant1", wizard.TaxOnboardingID)
	require.NoError(t, err)

	require.Equal(t, first.CurrentStep, second.CurrentStep)
	require.Equal(t, first.Drafts, second.Drafts)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM progress_drafts`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestProgressRepository_SaveAfterSubmissionStartsFresh(t *testing.T) {
	db := NewTestDB(t)
	progressRepo := NewProgressRepository(db)
	submissionRepo := NewSubmissionRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	require.NoError(t, progressRepo.Save(ctx, "tenant1", stepWrite(5, wizard.StepReview, `{"contactEmail":"a@b.co","confirmAccuracy":true}`, at)))
	require.NoError(t, submissionRepo.Create(ctx, "tenant1", &submission.Record{
		ID:          "sub-1",
		WizardID:    wizard.TaxOnboardingID,
		Payload:     json.RawMessage(`{}`),
		SubmittedAt: at.Add(time.Minute),
	}))

	got, err := progressRepo.Get(ctx, "tenant1", wizard.TaxOnboardingID)
	require.NoError(t, err)
	require.Equal(t, wizard.StatusSuperseded, got.Status)

	require.NoError(t, progressRepo.Save(ctx, "tenant1", stepWrite(1, wizard.StepBusinessInfo, `{"country":"CA"}`, at.Add(time.Hour))))
	got, err = progressRepo.Get(ctx, "tenant1", wizard.TaxOnboardingID)
	require.NoError(t, err)
	require.Equal(t, wizard.StatusActive, got.Status)
	require.Equal(t, 1, got.CurrentStep)
	require.Len(t, got.Drafts, 1)
	require.Contains(t, got.Drafts, wizard.StepBusinessInfo)
}
