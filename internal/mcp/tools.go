package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/wizard"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var errNoTenant = errors.New("unauthorized: no tenant")

type toolSet struct {
	services Services
	logger   *slog.Logger
}

func registerTools(server *sdkmcp.Server, services Services, logger *slog.Logger) {
	t := &toolSet{services: services, logger: logger}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_wizard_definition",
		Description: "Get the ordered steps of a wizard with their fields and required fields",
	}, t.getWizardDefinition)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "load_progress",
		Description: "Load the saved step pointer and step drafts for the current tenant",
	}, t.loadProgress)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "save_progress",
		Description: "Save one step draft and the current step pointer. Saving the same draft twice is harmless",
	}, t.saveProgress)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "validate_step",
		Description: "Check a step draft for missing and malformed fields without saving it",
	}, t.validateStep)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "request_suggestion",
		Description: "Ask for suggested field values for a step. Consumes one unit of the tenant's suggestion quota on success",
	}, t.requestSuggestion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_quota",
		Description: "Get the tenant's suggestion usage, limit and reset time",
	}, t.getQuota)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "submit_wizard",
		Description: "Submit every step draft as the final wizard payload",
	}, t.submitWizard)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_recent_activity",
		Description: "List recent wizard activity for the tenant, newest first",
	}, t.getRecentActivity)
}

func (t *toolSet) getWizardDefinition(ctx context.Context, _ *sdkmcp.CallToolRequest, in WizardParams) (*sdkmcp.CallToolResult, any, error) {
	def, err := t.definition(in.WizardID)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(def)
}

func (t *toolSet) loadProgress(ctx context.Context, _ *sdkmcp.CallToolRequest, in WizardParams) (*sdkmcp.CallToolResult, any, error) {
	tenantID, def, err := t.scope(ctx, in.WizardID)
	if err != nil {
		return toolError(err)
	}
	prog, err := t.services.Progress.Load(ctx, tenantID, def.ID)
	if err != nil {
		return toolError(err)
	}
	raw, err := wizard.EncodeDrafts(prog.Drafts)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(ProgressResult{
		WizardID:    prog.WizardID,
		CurrentStep: prog.CurrentStep,
		TotalSteps:  def.TotalSteps(),
		StepDrafts:  raw,
		UpdatedAt:   prog.UpdatedAt,
	})
}

func (t *toolSet) saveProgress(ctx context.Context, _ *sdkmcp.CallToolRequest, in SaveProgressParams) (*sdkmcp.CallToolResult, any, error) {
	tenantID, def, err := t.scope(ctx, in.WizardID)
	if err != nil {
		return toolError(err)
	}
	key := wizard.StepKey(in.StepKey)
	draft, err := decodeDraft(def, key, in.StepDraft)
	if err != nil {
		return toolError(err)
	}
	err = t.services.Progress.Save(ctx, tenantID, wizard.SaveRequest{
		WizardID:    def.ID,
		CurrentStep: in.CurrentStep,
		StepKey:     key,
		Draft:       draft,
	})
	if err != nil {
		return toolError(err)
	}
	return jsonResult(SaveProgressResult{Saved: true, CurrentStep: in.CurrentStep})
}

func (t *toolSet) validateStep(ctx context.Context, _ *sdkmcp.CallToolRequest, in ValidateStepParams) (*sdkmcp.CallToolResult, any, error) {
	def, err := t.definition(in.WizardID)
	if err != nil {
		return toolError(err)
	}
	key := wizard.StepKey(in.StepKey)
	draft, err := decodeDraft(def, key, in.StepDraft)
	if err != nil {
		return toolError(err)
	}
	errs, err := def.Validate(key, draft)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(ValidateStepResult{Valid: len(errs) == 0, Errors: errs})
}

func (t *toolSet) requestSuggestion(ctx context.Context, _ *sdkmcp.CallToolRequest, in RequestSuggestionParams) (*sdkmcp.CallToolResult, any, error) {
	tenantID, def, err := t.scope(ctx, in.WizardID)
	if err != nil {
		return toolError(err)
	}
	key := wizard.StepKey(in.StepKey)
	draft, err := decodeDraft(def, key, in.StepDraft)
	if err != nil {
		return toolError(err)
	}
	previous, err := decodeDrafts(def, in.PreviousSteps)
	if err != nil {
		return toolError(err)
	}
	out, err := t.services.Suggestions.Suggest(ctx, tenantID, wizard.SuggestionRequest{
		WizardID:      def.ID,
		StepKey:       key,
		Draft:         draft,
		PreviousSteps: previous,
	})
	if err != nil {
		return toolError(err)
	}
	return jsonResult(out)
}

func (t *toolSet) getQuota(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, any, error) {
	tenantID := getTenantID(ctx)
	if tenantID == "" {
		return toolError(errNoTenant)
	}
	q, err := t.services.Quotas.Get(ctx, tenantID)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(QuotaResult{Used: q.Used, Limit: q.Limit, Remaining: q.Remaining(), ResetsAt: q.ResetsAt})
}

func (t *toolSet) submitWizard(ctx context.Context, _ *sdkmcp.CallToolRequest, in SubmitWizardParams) (*sdkmcp.CallToolResult, any, error) {
	tenantID, def, err := t.scope(ctx, in.WizardID)
	if err != nil {
		return toolError(err)
	}
	drafts, err := decodeDrafts(def, in.StepDrafts)
	if err != nil {
		return toolError(err)
	}
	receipt, err := t.services.Submissions.Submit(ctx, tenantID, wizard.Submission{WizardID: def.ID, Drafts: drafts})
	if err != nil {
		return toolError(err)
	}
	if t.logger != nil {
		t.logger.Info("wizard submitted over mcp", "tenant_id", tenantID, "submission_id", receipt.ID)
	}
	return jsonResult(receipt)
}

func (t *toolSet) getRecentActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetRecentActivityParams) (*sdkmcp.CallToolResult, any, error) {
	tenantID := getTenantID(ctx)
	if tenantID == "" {
		return toolError(errNoTenant)
	}
	opts := activity.ListActivityOptions{WizardID: in.WizardID, Limit: in.Limit, Offset: in.Offset}
	if in.Type != "" {
		typ := activity.ActivityType(in.Type)
		opts.ActivityType = &typ
	}
	entries, err := t.services.Activity.GetRecentActivity(ctx, tenantID, opts)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"entries": entries})
}

func (t *toolSet) definition(wizardID string) (*wizard.Definition, error) {
	if wizardID == "" {
		wizardID = wizard.TaxOnboardingID
	}
	return t.services.Catalog.Get(wizardID)
}

func (t *toolSet) scope(ctx context.Context, wizardID string) (string, *wizard.Definition, error) {
	tenantID := getTenantID(ctx)
	if tenantID == "" {
		return "", nil, errNoTenant
	}
	def, err := t.definition(wizardID)
	if err != nil {
		return "", nil, err
	}
	return tenantID, def, nil
}

func decodeDraft(def *wizard.Definition, key wizard.StepKey, fields Draft) (wizard.StepDraft, error) {
	var raw []byte
	if fields != nil {
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encoding %s draft: %w", key, err)
		}
		raw = data
	}
	return def.Decode(key, raw)
}

func decodeDrafts(def *wizard.Definition, in map[string]Draft) (wizard.Drafts, error) {
	out := make(wizard.Drafts, len(in))
	for k, fields := range in {
		key := wizard.StepKey(k)
		draft, err := decodeDraft(def, key, fields)
		if err != nil {
			return nil, err
		}
		out[key] = draft
	}
	return out, nil
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// toolError reports mapped domain errors as error results carrying an
// APIError. Other errors are returned unchanged.
func toolError(err error) (*sdkmcp.CallToolResult, any, error) {
	apiErr := MapError(err)
	if apiErr == nil {
		return nil, nil, err
	}
	data, mErr := json.Marshal(map[string]any{"error": apiErr})
	if mErr != nil {
		return nil, nil, err
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
