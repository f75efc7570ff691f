package wizard

import (
	"math/big"
	"strings"
	"time"
)

// TaxOnboardingID is the ID of the tax settings onboarding wizard.
const TaxOnboardingID = "tax-onboarding"

const (
	StepBusinessInfo StepKey = "businessInfo"
	StepTaxRates     StepKey = "taxRates"
	StepNexus        StepKey = "nexus"
	StepFiling       StepKey = "filing"
	StepReview       StepKey = "review"
)

// Filing frequencies.
const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyAnnually  = "annually"
)

// BusinessInfo is where the business is located.
type BusinessInfo struct {
	BusinessName  string `json:"businessName,omitempty"`
	Country       string `json:"country" validate:"required"`
	StateProvince string `json:"stateProvince" validate:"required"`
	City          string `json:"city" validate:"required"`
	PostalCode    string `json:"postalCode,omitempty"`
}

func (BusinessInfo) StepKey() StepKey { return StepBusinessInfo }

// TaxRates holds the sales tax rates, as percentages in decimal notation.
// TotalRate is derived from the components at input time.
type TaxRates struct {
	StateRate string `json:"stateRate,omitempty" validate:"decimal"`
	LocalRate string `json:"localRate,omitempty" validate:"decimal"`
	TotalRate string `json:"totalRate,omitempty"`
}

func (TaxRates) StepKey() StepKey { return StepTaxRates }

func (t TaxRates) derive() StepDraft {
	t.TotalRate = sumDecimals(t.StateRate, t.LocalRate)
	return t
}

// Nexus lists the jurisdictions where the business must collect tax.
type Nexus struct {
	PhysicalPresence bool     `json:"physicalPresence"`
	States           []string `json:"states" validate:"required,min=1,dive,required"`
}

func (Nexus) StepKey() StepKey { return StepNexus }

// Filing is the return filing schedule.
type Filing struct {
	Frequency        string `json:"frequency" validate:"required,oneof=monthly quarterly annually"`
	FirstPeriodStart string `json:"firstPeriodStart" validate:"required,datetime=2006-01-02"`
}

func (Filing) StepKey() StepKey { return StepFiling }

// Review is the final confirmation step.
type Review struct {
	ContactEmail    string `json:"contactEmail" validate:"required,email"`
	ConfirmAccuracy bool   `json:"confirmAccuracy" validate:"required"`
}

func (Review) StepKey() StepKey { return StepReview }

// TaxOnboarding returns the five-step tax settings onboarding wizard.
func TaxOnboarding() *Definition {
	return &Definition{
		ID:    TaxOnboardingID,
		Title: "Tax settings",
		Steps: []StepDefinition{
			newStep[BusinessInfo]("Business information", []Field{
				{Name: "businessName", Label: "Business name", Kind: KindText},
				{Name: "country", Label: "Country", Kind: KindText},
				{Name: "stateProvince", Label: "State / province", Kind: KindText},
				{Name: "city", Label: "City", Kind: KindText},
				{Name: "postalCode", Label: "Postal code", Kind: KindText},
			}),
			newStep[TaxRates]("Tax rates", []Field{
				{Name: "stateRate", Label: "State rate (%)", Kind: KindDecimal},
				{Name: "localRate", Label: "Local rate (%)", Kind: KindDecimal},
				{Name: "totalRate", Label: "Total rate (%)", Kind: KindDerived},
			}),
			newStep[Nexus]("Nexus", []Field{
				{Name: "physicalPresence", Label: "Physical presence", Kind: KindBool},
				{Name: "states", Label: "Nexus states", Kind: KindList},
			}),
			newStep[Filing]("Filing schedule", []Field{
				{Name: "frequency", Label: "Frequency", Kind: KindChoice, Options: []string{FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually}},
				{Name: "firstPeriodStart", Label: "First period start (YYYY-MM-DD)", Kind: KindDate},
			}),
			newStep[Review]("Review", []Field{
				{Name: "contactEmail", Label: "Contact email", Kind: KindText},
				{Name: "confirmAccuracy", Label: "I confirm these settings are accurate", Kind: KindBool},
			}),
		},
	}
}

// sumDecimals adds non-negative decimal strings exactly. Empty operands count
// as zero; any malformed operand, or both operands empty, yields "".
func sumDecimals(values ...string) string {
	total := new(big.Rat)
	scale := 0
	seen := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !isDecimal(v) {
			return ""
		}
		r, ok := new(big.Rat).SetString(v)
		if !ok {
			return ""
		}
		if i := strings.IndexByte(v, '.'); i >= 0 && len(v)-i-1 > scale {
			scale = len(v) - i - 1
		}
		total.Add(total, r)
		seen = true
	}
	if !seen {
		return ""
	}
	return total.FloatString(scale)
}

// NextPeriodStart returns the first day of the month after t.
func NextPeriodStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}
