package submission

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
	"github.com/google/uuid"
)

// Service accepts final wizard submissions.
type Service struct {
	catalog  wizard.Catalog
	repo     Repository
	activity ActivityRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new submission service. activity may be nil.
func NewService(catalog wizard.Catalog, repo Repository, activity ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		repo:     repo,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit applies a complete wizard. Derived fields are recomputed from their
// components before validation, so a stale total sent by a client is
// corrected rather than stored.
func (s *Service) Submit(ctx context.Context, tenantID string, sub wizard.Submission) (*wizard.Receipt, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	def, err := s.catalog.Get(sub.WizardID)
	if err != nil {
		return nil, err
	}

	drafts := wizard.DeriveAll(sub.Drafts)
	if err := def.CheckComplete(drafts); err != nil {
		return nil, err
	}
	for _, use := range sub.Suggestions {
		if _, _, err := def.Lookup(use.StepKey); err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(wizard.Submission{
		WizardID:    sub.WizardID,
		Drafts:      drafts,
		Suggestions: sub.Suggestions,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}

	rec := &Record{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		WizardID:    sub.WizardID,
		Payload:     payload,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, tenantID, rec); err != nil {
		return nil, fmt.Errorf("storing submission: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("wizard submitted", "tenant", tenantID, "wizard", sub.WizardID, "submission", rec.ID)
	}
	if s.activity != nil {
		s.activity.Record(ctx, tenantID, &activity.ActivityEntry{
			WizardID:     sub.WizardID,
			SubmissionID: &rec.ID,
			ActivityType: activity.TypeSubmitted,
			Summary:      fmt.Sprintf("submitted %s", sub.WizardID),
			Details:      activity.Details(map[string]int{"suggestions": len(sub.Suggestions)}),
		})
	}

	return &wizard.Receipt{ID: rec.ID, SubmittedAt: rec.SubmittedAt}, nil
}

// Get returns a stored submission with its decoded payload.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Record, *wizard.Submission, error) {
	rec, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSubmissionNotFound
		}
		return nil, nil, fmt.Errorf("loading submission: %w", err)
	}
	def, err := s.catalog.Get(rec.WizardID)
	if err != nil {
		return nil, nil, err
	}
	sub, err := DecodePayload(def, rec.Payload)
	if err != nil {
		return nil, nil, err
	}
	return rec, sub, nil
}

// DecodePayload decodes a stored or transmitted submission body.
func DecodePayload(def *wizard.Definition, payload []byte) (*wizard.Submission, error) {
	var wire struct {
		WizardID    string                 `json:"wizardId"`
		Drafts      wizard.RawDrafts       `json:"stepDrafts"`
		Suggestions []wizard.SuggestionUse `json:"suggestions"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", wizard.ErrMalformedDraft, err)
	}
	drafts, err := def.DecodeDrafts(wire.Drafts)
	if err != nil {
		return nil, err
	}
	return &wizard.Submission{WizardID: def.ID, Drafts: drafts, Suggestions: wire.Suggestions}, nil
}
