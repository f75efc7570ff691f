package suggestion

import (
	"context"
	"errors"
	"testing"

	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
	answer string
	err    error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.answer, genai.RoleModel)}},
	}, nil
}

func TestGenAIProvider_Suggest(t *testing.T) {
	gen := &fakeGenerator{answer: "```json\n{\"explanation\":\"CA rate\",\"confidence\":70,\"suggestedData\":{\"stateRate\":\"7.25\"}}\n```"}
	p := newGenAIProvider(gen, "")

	in := ruleInput(t, wizard.StepTaxRates, wizard.TaxRates{LocalRate: "1"}, wizard.Drafts{
		wizard.StepBusinessInfo: wizard.BusinessInfo{Country: "US", StateProvince: "CA", City: "SF"},
	})
	got, err := p.Suggest(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "CA rate", got.Explanation)
	require.Equal(t, 70, *got.Confidence)
	require.Equal(t, map[string]any{"stateRate": "7.25"}, got.SuggestedData)

	require.Equal(t, defaultGenAIModel, gen.model)
	require.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.Contains(t, gen.prompt, "- stateRate (decimal)")
	require.NotContains(t, gen.prompt, "- totalRate")
	require.Contains(t, gen.prompt, `"localRate":"1"`)
}

func TestGenAIProvider_Errors(t *testing.T) {
	in := ruleInput(t, wizard.StepNexus, wizard.Nexus{}, nil)

	_, err := newGenAIProvider(&fakeGenerator{err: errors.New("429")}, "m").Suggest(context.Background(), in)
	require.ErrorContains(t, err, "GenAI generate failed")

	_, err = newGenAIProvider(&fakeGenerator{answer: "not json"}, "m").Suggest(context.Background(), in)
	require.ErrorContains(t, err, "decoding GenAI answer")

	_, err = NewGenAIProvider(context.Background(), "", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

type openQuota struct {
	reserved, released int
}

func (q *openQuota) Reserve(_ context.Context, _ string) (*wizard.Quota, error) {
	q.reserved++
	return &wizard.Quota{Used: q.reserved, Limit: 5}, nil
}

func (q *openQuota) Release(_ context.Context, _ string) error {
	q.released++
	return nil
}

func TestGenAIProvider_NumericValuesAreDropped(t *testing.T) {
	gen := &fakeGenerator{answer: `{"explanation":"CA rates","suggestedData":{"stateRate":7.25,"localRate":"1"}}`}
	quotas := &openQuota{}
	svc := NewService(wizard.DefaultCatalog(), quotas, newGenAIProvider(gen, ""), nil, nil)

	got, err := svc.Suggest(context.Background(), "tenant1", wizard.SuggestionRequest{
		WizardID: wizard.TaxOnboardingID,
		StepKey:  wizard.StepTaxRates,
		Draft:    wizard.TaxRates{},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"localRate": "1"}, got.SuggestedData)
	require.Equal(t, 1, quotas.reserved)
	require.Zero(t, quotas.released)
}
