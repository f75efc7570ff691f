package suggestion

import (
	"context"
	"testing"
	"time"

	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/stretchr/testify/require"
)

func ruleInput(t *testing.T, key wizard.StepKey, draft wizard.StepDraft, previous wizard.Drafts) Input {
	t.Helper()
	step, _, err := wizard.TaxOnboarding().Lookup(key)
	require.NoError(t, err)
	return Input{WizardID: wizard.TaxOnboardingID, Step: step, Draft: draft, Previous: previous}
}

func TestRuleProvider_TaxRates(t *testing.T) {
	p := NewRuleProvider()
	info := wizard.Drafts{wizard.StepBusinessInfo: wizard.BusinessInfo{Country: "us", StateProvince: "ca", City: "SF"}}

	got, err := p.Suggest(context.Background(), ruleInput(t, wizard.StepTaxRates, wizard.TaxRates{}, info))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"stateRate": "7.25"}, got.SuggestedData)
	require.Equal(t, 85, *got.Confidence)
	require.Equal(t, []string{rateTableSource}, got.Sources)

	unknown := wizard.Drafts{wizard.StepBusinessInfo: wizard.BusinessInfo{Country: "DE", StateProvince: "BE"}}
	got, err = p.Suggest(context.Background(), ruleInput(t, wizard.StepTaxRates, wizard.TaxRates{}, unknown))
	require.NoError(t, err)
	require.Nil(t, got.SuggestedData)
	require.Nil(t, got.Confidence)
	require.Contains(t, got.Explanation, "BE, DE")
}

func TestRuleProvider_NexusFromLocation(t *testing.T) {
	p := NewRuleProvider()
	info := wizard.Drafts{wizard.StepBusinessInfo: wizard.BusinessInfo{Country: "US", StateProvince: "nv"}}

	got, err := p.Suggest(context.Background(), ruleInput(t, wizard.StepNexus, wizard.Nexus{}, info))
	require.NoError(t, err)
	require.Equal(t, []string{"NV"}, got.SuggestedData["states"])
	require.Equal(t, true, got.SuggestedData["physicalPresence"])
}

func TestRuleProvider_Filing(t *testing.T) {
	p := &RuleProvider{now: func() time.Time { return time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC) }}
	previous := wizard.Drafts{wizard.StepTaxRates: wizard.TaxRates{StateRate: "7.25", LocalRate: "1.5"}}

	got, err := p.Suggest(context.Background(), ruleInput(t, wizard.StepFiling, wizard.Filing{}, previous))
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"frequency":        wizard.FrequencyMonthly,
		"firstPeriodStart": "2027-01-01",
	}, got.SuggestedData)
}

func TestFrequencyFor(t *testing.T) {
	require.Equal(t, wizard.FrequencyMonthly, frequencyFor("8.75"))
	require.Equal(t, wizard.FrequencyQuarterly, frequencyFor("6"))
	require.Equal(t, wizard.FrequencyAnnually, frequencyFor("0"))
	require.Equal(t, wizard.FrequencyQuarterly, frequencyFor(""))
}
