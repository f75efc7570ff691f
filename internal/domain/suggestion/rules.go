package suggestion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ganot/stepwise/internal/domain/wizard"
)

const rateTableSource = "built-in state rate table (2026)"

// stateRates holds base state sales tax rates in percent, keyed by
// "COUNTRY/REGION" in upper case.
var stateRates = map[string]string{
	"US/AL": "4", "US/AZ": "5.6", "US/CA": "7.25", "US/CO": "2.9",
	"US/FL": "6", "US/GA": "4", "US/IL": "6.25", "US/MA": "6.25",
	"US/NV": "6.85", "US/NJ": "6.625", "US/NY": "4", "US/OR": "0",
	"US/PA": "6", "US/TX": "6.25", "US/WA": "6.5",
	"CA/ON": "8", "CA/BC": "7", "CA/QC": "9.975",
}

// RuleProvider answers from built-in tables. It is deterministic and needs
// no network access.
type RuleProvider struct {
	now func() time.Time
}

// NewRuleProvider creates a rule-based provider.
func NewRuleProvider() *RuleProvider {
	return &RuleProvider{now: time.Now}
}

// Suggest implements Provider.
func (p *RuleProvider) Suggest(_ context.Context, in Input) (*wizard.Suggestion, error) {
	info, _ := in.Previous[wizard.StepBusinessInfo].(wizard.BusinessInfo)
	if d, ok := in.Draft.(wizard.BusinessInfo); ok {
		info = d
	}

	switch in.Step.Key {
	case wizard.StepBusinessInfo:
		if strings.TrimSpace(info.Country) != "" {
			return &wizard.Suggestion{Explanation: "Business location looks complete."}, nil
		}
		return &wizard.Suggestion{
			Explanation:   "Most tenants register in the United States.",
			Confidence:    intPtr(40),
			SuggestedData: map[string]any{"country": "US"},
		}, nil

	case wizard.StepTaxRates:
		rate, ok := lookupRate(info)
		if !ok {
			return &wizard.Suggestion{
				Explanation: fmt.Sprintf("No rate on file for %s.", location(info)),
			}, nil
		}
		return &wizard.Suggestion{
			Explanation:   fmt.Sprintf("The base state rate for %s is %s%%. Local rates vary by city.", location(info), rate),
			Confidence:    intPtr(85),
			Sources:       []string{rateTableSource},
			SuggestedData: map[string]any{"stateRate": rate},
		}, nil

	case wizard.StepNexus:
		region := strings.ToUpper(strings.TrimSpace(info.StateProvince))
		if region == "" {
			return &wizard.Suggestion{Explanation: "Add your business location first."}, nil
		}
		return &wizard.Suggestion{
			Explanation:   fmt.Sprintf("A business located in %s has physical nexus there.", region),
			Confidence:    intPtr(90),
			SuggestedData: map[string]any{"physicalPresence": true, "states": []string{region}},
		}, nil

	case wizard.StepFiling:
		rates, _ := in.Previous[wizard.StepTaxRates].(wizard.TaxRates)
		total := wizard.Derive(rates).(wizard.TaxRates).TotalRate
		freq := frequencyFor(total)
		return &wizard.Suggestion{
			Explanation: fmt.Sprintf("A total rate of %s%% usually files %s.", orZero(total), freq),
			Confidence:  intPtr(60),
			SuggestedData: map[string]any{
				"frequency":        freq,
				"firstPeriodStart": wizard.NextPeriodStart(p.now()).Format("2006-01-02"),
			},
		}, nil

	default:
		return &wizard.Suggestion{Explanation: "Check each value before you confirm."}, nil
	}
}

func lookupRate(info wizard.BusinessInfo) (string, bool) {
	country := strings.ToUpper(strings.TrimSpace(info.Country))
	if country == "USA" {
		country = "US"
	}
	rate, ok := stateRates[country+"/"+strings.ToUpper(strings.TrimSpace(info.StateProvince))]
	return rate, ok
}

// frequencyFor picks a filing frequency from the combined rate. Higher rates
// mean larger remittances, which jurisdictions want more often.
func frequencyFor(total string) string {
	rate, err := strconv.ParseFloat(total, 64)
	if err != nil {
		return wizard.FrequencyQuarterly
	}
	switch {
	case rate >= 8:
		return wizard.FrequencyMonthly
	case rate >= 4:
		return wizard.FrequencyQuarterly
	default:
		return wizard.FrequencyAnnually
	}
}

func location(info wizard.BusinessInfo) string {
	parts := []string{}
	for _, p := range []string{info.StateProvince, info.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "this location"
	}
	return strings.Join(parts, ", ")
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func intPtr(v int) *int { return &v }
