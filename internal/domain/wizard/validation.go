package wizard

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// validate is safe for concurrent use and caches struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || isDecimal(s)
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		rates := sl.Current().Interface().(TaxRates)
		if strings.TrimSpace(rates.StateRate) == "" && strings.TrimSpace(rates.LocalRate) == "" {
			sl.ReportError(rates.StateRate, "stateRate", "StateRate", "atleastonerate", "")
		}
	}, TaxRates{})
	return v
}

func isDecimal(s string) bool {
	return decimalPattern.MatchString(s)
}

// ValidateDraft checks presence and format of a draft's fields. It never
// mutates the draft and never recomputes derived fields.
func ValidateDraft(d StepDraft) []FieldError {
	if d == nil {
		return nil
	}
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

// Validate runs the validator for the draft of the given step. A nil draft is
// validated as the step's empty draft.
func (d *Definition) Validate(key StepKey, draft StepDraft) ([]FieldError, error) {
	step, _, err := d.Lookup(key)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		draft = step.empty
	}
	if draft.StepKey() != key {
		return nil, fmt.Errorf("%w: draft for %s given to %s", ErrMalformedDraft, draft.StepKey(), key)
	}
	return step.Validate(draft), nil
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "decimal":
		return field + " must be a non-negative decimal"
	case "atleastonerate":
		return "at least one tax rate must be non-empty"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return field + " must be a valid email address"
	case "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("at least %s %s required", fe.Param(), field)
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
