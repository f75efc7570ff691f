package suggestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ganot/stepwise/internal/domain/wizard"
	"google.golang.org/genai"
)

const defaultGenAIModel = "gemini-2.5-flash"

const systemPrompt = `You help businesses fill in a tax settings onboarding form.
Answer with a single JSON object: {"explanation": string, "confidence": integer 0-100,
"sources": [string], "suggestedData": {field: value}}.
Only use field names listed for the step. Leave out fields you are unsure about.
Rates are percentages written as decimal strings, for example "7.25".`

// generator is the slice of the genai models API the provider needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIProvider asks a hosted Gemini model for suggestions.
type GenAIProvider struct {
	models generator
	model  string
}

// NewGenAIProvider creates a provider backed by the Gemini API.
func NewGenAIProvider(ctx context.Context, apiKey, model string) (*GenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GenAI API key is required", ErrInvalidInput)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGenAIProvider(client.Models, model), nil
}

func newGenAIProvider(models generator, model string) *GenAIProvider {
	if model == "" {
		model = defaultGenAIModel
	}
	return &GenAIProvider{models: models, model: model}
}

// Suggest implements Provider.
func (p *GenAIProvider) Suggest(ctx context.Context, in Input) (*wizard.Suggestion, error) {
	prompt, err := buildPrompt(in)
	if err != nil {
		return nil, err
	}

	resp, err := p.models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0.2),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("GenAI returned no content")
	}
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```json"), "```")

	var out wizard.Suggestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return nil, fmt.Errorf("decoding GenAI answer: %w", err)
	}
	if out.Explanation == "" {
		out.Explanation = "Suggested values for " + in.Step.Title + "."
	}
	return &out, nil
}

func buildPrompt(in Input) (string, error) {
	current, err := json.Marshal(in.Draft)
	if err != nil {
		return "", fmt.Errorf("encoding draft: %w", err)
	}
	previous, err := json.Marshal(in.Previous)
	if err != nil {
		return "", fmt.Errorf("encoding previous steps: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Step: %s (%s)\n", in.Step.Title, in.Step.Key)
	b.WriteString("Fields:\n")
	for _, f := range in.Step.Fields {
		if f.Kind == wizard.KindDerived {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): %s", f.Name, f.Kind, f.Label)
		if len(f.Options) > 0 {
			fmt.Fprintf(&b, " one of %s", strings.Join(f.Options, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Current values: %s\n", current)
	fmt.Fprintf(&b, "Completed steps: %s\n", previous)
	return b.String(), nil
}
