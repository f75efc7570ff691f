package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// FieldKind tells a renderer how to collect a field.
type FieldKind string

const (
	KindText    FieldKind = "text"
	KindDecimal FieldKind = "decimal"
	KindBool    FieldKind = "bool"
	KindList    FieldKind = "list"
	KindDate    FieldKind = "date"
	KindChoice  FieldKind = "choice"
	KindDerived FieldKind = "derived"
)

// Field describes one input of a step.
type Field struct {
	Name    string    `json:"name"`
	Label   string    `json:"label"`
	Kind    FieldKind `json:"kind"`
	Options []string  `json:"options,omitempty"`
}

// StepDefinition is the static description of one step.
type StepDefinition struct {
	Key            StepKey  `json:"key"`
	Title          string   `json:"title"`
	RequiredFields []string `json:"requiredFields"`
	Fields         []Field  `json:"fields"`

	empty  StepDraft
	decode func([]byte) (StepDraft, error)
}

// Empty returns the zero draft for the step.
func (s StepDefinition) Empty() StepDraft {
	return s.empty
}

// Field returns the named field definition.
func (s StepDefinition) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Decode decodes a raw draft into the step's concrete type. Unknown fields are rejected.
func (s StepDefinition) Decode(raw []byte) (StepDraft, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return s.empty, nil
	}
	d, err := s.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDraft, s.Key, err)
	}
	return d, nil
}

// Validate runs the step validator for this step.
func (s StepDefinition) Validate(d StepDraft) []FieldError {
	if d == nil {
		d = s.empty
	}
	return ValidateDraft(d)
}

// Definition is an ordered set of steps. It is authored once per wizard.
type Definition struct {
	ID    string           `json:"id"`
	Title string           `json:"title"`
	Steps []StepDefinition `json:"steps"`
}

// TotalSteps returns the number of steps.
func (d *Definition) TotalSteps() int {
	return len(d.Steps)
}

// Step returns the definition of 1-based step n.
func (d *Definition) Step(n int) (StepDefinition, error) {
	if n < 1 || n > len(d.Steps) {
		return StepDefinition{}, fmt.Errorf("%w: %d", ErrStepOutOfRange, n)
	}
	return d.Steps[n-1], nil
}

// Lookup returns the step definition and its 1-based position.
func (d *Definition) Lookup(key StepKey) (StepDefinition, int, error) {
	for i, s := range d.Steps {
		if s.Key == key {
			return s, i + 1, nil
		}
	}
	return StepDefinition{}, 0, fmt.Errorf("%w: %s", ErrUnknownStep, key)
}

// Decode decodes a raw draft for the given step key.
func (d *Definition) Decode(key StepKey, raw []byte) (StepDraft, error) {
	step, _, err := d.Lookup(key)
	if err != nil {
		return nil, err
	}
	return step.Decode(raw)
}

// DecodeDrafts decodes a full raw drafts map.
func (d *Definition) DecodeDrafts(raw RawDrafts) (Drafts, error) {
	out := make(Drafts, len(raw))
	for key, payload := range raw {
		draft, err := d.Decode(key, payload)
		if err != nil {
			return nil, err
		}
		out[key] = draft
	}
	return out, nil
}

// EncodeDrafts encodes drafts to their wire form.
func EncodeDrafts(drafts Drafts) (RawDrafts, error) {
	out := make(RawDrafts, len(drafts))
	for key, draft := range drafts {
		data, err := json.Marshal(draft)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

// CheckComplete verifies every step has a draft that passes validation.
func (d *Definition) CheckComplete(drafts Drafts) error {
	for _, step := range d.Steps {
		draft, ok := drafts[step.Key]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrIncomplete, step.Key)
		}
		if errs := step.Validate(draft); len(errs) > 0 {
			return fmt.Errorf("%w: %w", ErrIncomplete, &ValidationError{Step: step.Key, Errors: errs})
		}
	}
	for key := range drafts {
		if _, _, err := d.Lookup(key); err != nil {
			return err
		}
	}
	return nil
}

// Catalog maps wizard IDs to definitions.
type Catalog map[string]*Definition

// DefaultCatalog returns the wizards shipped with the service.
func DefaultCatalog() Catalog {
	tax := TaxOnboarding()
	return Catalog{tax.ID: tax}
}

// Get returns the definition for a wizard ID.
func (c Catalog) Get(id string) (*Definition, error) {
	def, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWizard, id)
	}
	return def, nil
}

func newStep[T StepDraft](title string, fields []Field) StepDefinition {
	var zero T
	return StepDefinition{
		Key:            zero.StepKey(),
		Title:          title,
		RequiredFields: requiredFields(zero),
		Fields:         fields,
		empty:          zero,
		decode: func(raw []byte) (StepDraft, error) {
			var v T
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// requiredFields lists the json names of fields tagged as required.
func requiredFields(d StepDraft) []string {
	t := reflect.TypeOf(d)
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		rules := strings.Split(f.Tag.Get("validate"), ",")
		for _, r := range rules {
			if r == "required" {
				out = append(out, jsonName(f))
				break
			}
		}
	}
	return out
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
