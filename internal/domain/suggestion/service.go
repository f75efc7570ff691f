package suggestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/quota"
	"github.com/ganot/stepwise/internal/domain/wizard"
)

// Service issues suggestions against the tenant's quota.
type Service struct {
	catalog  wizard.Catalog
	quotas   QuotaReserver
	provider Provider
	activity ActivityRecorder
	logger   *slog.Logger
}

// NewService creates a new suggestion service. activity may be nil.
func NewService(catalog wizard.Catalog, quotas QuotaReserver, provider Provider, activity ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		quotas:   quotas,
		provider: provider,
		activity: activity,
		logger:   logger,
	}
}

// Suggest reserves one suggestion and asks the provider for the step. A
// provider failure returns the reservation, so quota is only consumed by
// suggestions that were delivered.
func (s *Service) Suggest(ctx context.Context, tenantID string, req wizard.SuggestionRequest) (*wizard.Suggestion, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	def, err := s.catalog.Get(req.WizardID)
	if err != nil {
		return nil, err
	}
	step, _, err := def.Lookup(req.StepKey)
	if err != nil {
		return nil, err
	}
	draft := req.Draft
	if draft == nil {
		draft = step.Empty()
	}
	if draft.StepKey() != req.StepKey {
		return nil, fmt.Errorf("%w: draft for %s sent as %s", wizard.ErrMalformedDraft, draft.StepKey(), req.StepKey)
	}
	for key := range req.PreviousSteps {
		if _, _, err := def.Lookup(key); err != nil {
			return nil, err
		}
	}

	if _, err := s.quotas.Reserve(ctx, tenantID); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			s.record(ctx, tenantID, req, activity.TypeQuotaRejected, "suggestion rejected: quota exceeded", nil)
		}
		return nil, err
	}

	out, err := s.provider.Suggest(ctx, Input{
		WizardID: req.WizardID,
		Step:     step,
		Draft:    draft,
		Previous: req.PreviousSteps,
	})
	if err != nil {
		if rerr := s.quotas.Release(ctx, tenantID); rerr != nil && s.logger != nil {
			s.logger.Error("suggestion reservation not released", "tenant", tenantID, "error", rerr)
		}
		s.record(ctx, tenantID, req, activity.TypeSuggestionFailed, "suggestion provider failed", map[string]string{"error": err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	out = sanitize(step, out)
	s.record(ctx, tenantID, req, activity.TypeSuggestionIssued, fmt.Sprintf("suggestion issued for %s", req.StepKey), map[string]any{
		"confidence": out.Confidence,
		"fields":     fieldNames(out.SuggestedData),
	})
	return out, nil
}

func (s *Service) record(ctx context.Context, tenantID string, req wizard.SuggestionRequest, typ activity.ActivityType, summary string, details any) {
	if s.activity == nil {
		return
	}
	entry := &activity.ActivityEntry{
		WizardID:     req.WizardID,
		StepKey:      activity.StringPtr(string(req.StepKey)),
		ActivityType: typ,
		Summary:      summary,
	}
	if details != nil {
		entry.Details = activity.Details(details)
	}
	s.activity.Record(ctx, tenantID, entry)
}

// sanitize bounds a provider answer to the step. Unknown and derived keys are
// dropped, as are values that do not decode into their field's type, and
// confidence is clamped to 0..100.
func sanitize(step wizard.StepDefinition, in *wizard.Suggestion) *wizard.Suggestion {
	if in == nil {
		return &wizard.Suggestion{}
	}
	out := *in
	if out.Confidence != nil {
		c := *out.Confidence
		if c < 0 {
			c = 0
		}
		if c > 100 {
			c = 100
		}
		out.Confidence = &c
	}
	if len(in.SuggestedData) > 0 {
		data := make(map[string]any, len(in.SuggestedData))
		for name, value := range in.SuggestedData {
			if !step.Accepts(name, value) {
				continue
			}
			data[name] = value
		}
		out.SuggestedData = data
		if len(data) == 0 {
			out.SuggestedData = nil
		}
	}
	return &out
}

func fieldNames(data map[string]any) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
