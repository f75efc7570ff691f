package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/repository"
)

// Service handles saved wizard progress.
type Service struct {
	catalog  wizard.Catalog
	repo     Repository
	activity ActivityRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new progress service. activity may be nil.
func NewService(catalog wizard.Catalog, repo Repository, activity ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		repo:     repo,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// Save upserts one step draft and the step pointer. Saving the same request
// twice leaves the same stored state.
func (s *Service) Save(ctx context.Context, tenantID string, req wizard.SaveRequest) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	def, err := s.catalog.Get(req.WizardID)
	if err != nil {
		return err
	}
	if _, err := def.Step(req.CurrentStep); err != nil {
		return err
	}
	step, _, err := def.Lookup(req.StepKey)
	if err != nil {
		return err
	}
	draft := req.Draft
	if draft == nil {
		draft = step.Empty()
	}
	if draft.StepKey() != req.StepKey {
		return fmt.Errorf("%w: draft for %s saved as %s", wizard.ErrMalformedDraft, draft.StepKey(), req.StepKey)
	}

	payload, err := json.Marshal(wizard.Derive(draft))
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}

	write := &StepWrite{
		WizardID:    req.WizardID,
		CurrentStep: req.CurrentStep,
		StepKey:     req.StepKey,
		Draft:       payload,
		SavedAt:     s.now().UTC(),
	}
	if err := s.repo.Save(ctx, tenantID, write); err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("progress saved", "tenant", tenantID, "wizard", req.WizardID, "step", req.StepKey, "current_step", req.CurrentStep)
	}
	if s.activity != nil {
		s.activity.Record(ctx, tenantID, &activity.ActivityEntry{
			WizardID:     req.WizardID,
			StepKey:      activity.StringPtr(string(req.StepKey)),
			ActivityType: activity.TypeStepSaved,
			Summary:      fmt.Sprintf("saved %s at step %d", req.StepKey, req.CurrentStep),
		})
	}
	return nil
}

// Load returns the tenant's active saved progress, or ErrProgressNotFound.
func (s *Service) Load(ctx context.Context, tenantID, wizardID string) (*wizard.Progress, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	def, err := s.catalog.Get(wizardID)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, tenantID, wizardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("loading progress: %w", err)
	}
	if rec.Status != wizard.StatusActive {
		return nil, ErrProgressNotFound
	}

	drafts, err := def.DecodeDrafts(rec.Drafts)
	if err != nil {
		return nil, fmt.Errorf("decoding saved drafts: %w", err)
	}

	current := rec.CurrentStep
	if current < 1 {
		current = 1
	}
	if current > def.TotalSteps() {
		current = def.TotalSteps()
	}

	return &wizard.Progress{
		TenantID:    tenantID,
		WizardID:    wizardID,
		CurrentStep: current,
		Drafts:      drafts,
		Status:      rec.Status,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}
