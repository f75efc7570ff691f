package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ganot/stepwise/internal/api"
	domain "github.com/ganot/stepwise/internal/domain/wizard"
)

// SuggestionClient requests suggestions.
type SuggestionClient struct {
	c *Client
}

// Suggest asks the server for suggestions for one step. The call is always
// made; quota checks belong to the caller.
func (s *SuggestionClient) Suggest(ctx context.Context, tenantID string, req domain.SuggestionRequest) (*domain.Suggestion, error) {
	draft, err := json.Marshal(req.Draft)
	if err != nil {
		return nil, fmt.Errorf("request suggestion: encoding draft: %w", err)
	}
	previous, err := domain.EncodeDrafts(req.PreviousSteps)
	if err != nil {
		return nil, fmt.Errorf("request suggestion: %w", err)
	}
	body := api.SuggestionRequest{
		StepKey:       req.StepKey,
		StepDraft:     draft,
		PreviousSteps: previous,
	}
	var out domain.Suggestion
	if err := s.c.do(ctx, "request suggestion", http.MethodPost, api.SuggestionsPath(tenantID, req.WizardID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuotaClient reads the suggestion quota.
type QuotaClient struct {
	c *Client
}

// Get returns the tenant's quota.
func (q *QuotaClient) Get(ctx context.Context, tenantID string) (*domain.Quota, error) {
	var out domain.Quota
	if err := q.c.do(ctx, "load quota", http.MethodGet, api.QuotaPath(tenantID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmissionClient sends final submissions.
type SubmissionClient struct {
	c *Client
}

// Submit posts every draft plus the suggestion metadata.
func (s *SubmissionClient) Submit(ctx context.Context, tenantID string, sub domain.Submission) (*domain.Receipt, error) {
	drafts, err := domain.EncodeDrafts(sub.Drafts)
	if err != nil {
		return nil, fmt.Errorf("submit wizard: %w", err)
	}
	body := api.SubmissionRequest{StepDrafts: drafts, Suggestions: sub.Suggestions}
	var out domain.Receipt
	if err := s.c.do(ctx, "submit wizard", http.MethodPost, api.SubmissionsPath(tenantID, sub.WizardID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
