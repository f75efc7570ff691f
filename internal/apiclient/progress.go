package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ganot/stepwise/internal/api"
	domain "github.com/ganot/stepwise/internal/domain/wizard"
)

// ProgressClient saves and loads progress.
type ProgressClient struct {
	c *Client
}

// Save upserts one step draft and the step pointer.
func (p *ProgressClient) Save(ctx context.Context, tenantID string, req domain.SaveRequest) error {
	draft, err := json.Marshal(req.Draft)
	if err != nil {
		return fmt.Errorf("save progress: encoding draft: %w", err)
	}
	body := api.SaveProgressRequest{
		CurrentStep: req.CurrentStep,
		StepKey:     req.StepKey,
		StepDraft:   draft,
	}
	return p.c.do(ctx, "save progress", http.MethodPut, api.ProgressPath(tenantID, req.WizardID), body, nil)
}

// Load returns saved progress or an error matching wizard.ErrNotFound.
func (p *ProgressClient) Load(ctx context.Context, tenantID, wizardID string) (*domain.Progress, error) {
	def, err := p.c.definition(wizardID)
	if err != nil {
		return nil, err
	}
	var resp api.ProgressResponse
	if err := p.c.do(ctx, "load progress", http.MethodGet, api.ProgressPath(tenantID, wizardID), nil, &resp); err != nil {
		return nil, err
	}
	drafts, err := def.DecodeDrafts(resp.StepDrafts)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return &domain.Progress{
		TenantID:    tenantID,
		WizardID:    wizardID,
		CurrentStep: resp.CurrentStep,
		Drafts:      drafts,
		Status:      domain.StatusActive,
		UpdatedAt:   resp.UpdatedAt,
	}, nil
}
