package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `stepwise runs multi-step setup wizards whose progress is saved on the server.

Core concepts:
- Wizard: an ordered list of steps. tax-onboarding is the default (businessInfo, taxRates, nexus, filing, review).
- Step draft: the field values collected for one step. Drafts are keyed by step key, never by position.
- Progress: the saved step pointer plus every saved draft. Loading it resumes a session.
- Quota: a per-tenant monthly allowance of suggestions. Only successful suggestions consume it.

Default workflow:
1) get_wizard_definition to learn the steps and their required fields.
2) load_progress to resume (NOT_FOUND means start at step 1).
3) For each step: fill the draft, validate_step, then save_progress with current_step set to the next step.
4) request_suggestion when the user wants help with a step. Never overwrite values the user typed.
5) submit_wizard with every step draft once all steps validate.

Docs:
- stepwise://docs/index
- stepwise://docs/steps
- stepwise://docs/suggestions-and-quota
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "stepwise://docs/index",
		Name:        "docs_index",
		Title:       "stepwise docs index",
		Description: "Entry point for agent-facing docs.",
		Content: `# stepwise: Agent Docs Index

## Quick start

1. ` + "`get_wizard_definition`" + ` to list steps and fields.
2. ` + "`load_progress`" + ` to resume a saved session.
3. ` + "`validate_step`" + ` then ` + "`save_progress`" + ` for each step.
4. ` + "`submit_wizard`" + ` when every step is valid.

## Docs

- ` + "`stepwise://docs/steps`" + `: the tax onboarding steps and their rules.
- ` + "`stepwise://docs/suggestions-and-quota`" + `: how suggestions are merged and counted.

## Errors

Tool errors carry ` + "`code`" + `, ` + "`message`" + ` and often ` + "`recovery_hint`" + `.
` + "`VALIDATION_FAILED`" + ` and ` + "`INCOMPLETE`" + ` include the failing fields in ` + "`details`" + `.
`,
	},
	{
		URI:         "stepwise://docs/steps",
		Name:        "docs_steps",
		Title:       "Tax onboarding steps",
		Description: "Fields and validation rules of each tax onboarding step.",
		Content: `# Tax onboarding steps

1. **businessInfo**: ` + "`country`" + `, ` + "`stateProvince`" + ` and ` + "`city`" + ` are required.
2. **taxRates**: ` + "`stateRate`" + ` and ` + "`localRate`" + ` are non-negative decimals; at least one must be set.
   ` + "`totalRate`" + ` is derived from the two and is recomputed on every save and before submission.
3. **nexus**: ` + "`states`" + ` needs at least one entry; ` + "`physicalPresence`" + ` is a boolean.
4. **filing**: ` + "`frequency`" + ` is monthly, quarterly or annually; ` + "`firstPeriodStart`" + ` is YYYY-MM-DD.
5. **review**: ` + "`contactEmail`" + ` must be an email and ` + "`confirmAccuracy`" + ` must be true.

Empty strings count as missing. Unknown fields are rejected.
`,
	},
	{
		URI:         "stepwise://docs/suggestions-and-quota",
		Name:        "docs_suggestions_and_quota",
		Title:       "Suggestions and quota",
		Description: "How suggestions are produced, merged, and counted against the quota.",
		Content: `# Suggestions and quota

- ` + "`request_suggestion`" + ` returns ` + "`suggestedData`" + ` limited to the step's own fields, an explanation,
  and an optional confidence between 0 and 100.
- Merge suggested values only into fields the user has not edited.
- Each successful suggestion uses one unit of quota. Failed suggestions do not.
- ` + "`QUOTA_EXCEEDED`" + ` means the allowance is used up until ` + "`resets_at`" + ` (see ` + "`get_quota`" + `).
  The wizard stays usable; fill fields manually.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
