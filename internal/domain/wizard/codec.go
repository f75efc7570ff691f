package wizard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type deriver interface {
	derive() StepDraft
}

// Derive recomputes derived fields of a draft from its components.
func Derive(d StepDraft) StepDraft {
	if dv, ok := d.(deriver); ok {
		return dv.derive()
	}
	return d
}

// DeriveAll recomputes derived fields of every draft.
func DeriveAll(drafts Drafts) Drafts {
	out := make(Drafts, len(drafts))
	for k, d := range drafts {
		out[k] = Derive(d)
	}
	return out
}

// WithField returns a copy of d with one field set from its text form.
// Derived fields cannot be set directly.
func (s StepDefinition) WithField(d StepDraft, name, value string) (StepDraft, error) {
	field, ok := s.Field(name)
	if !ok || field.Kind == KindDerived {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, s.Key, name)
	}
	fields, err := toFields(s, d)
	if err != nil {
		return nil, err
	}
	fields[name] = parseValue(field.Kind, value)
	next, err := fromFields(s, fields)
	if err != nil {
		return nil, err
	}
	return Derive(next), nil
}

// Accepts reports whether value decodes into the named field on its own.
// Unknown and derived fields accept nothing.
func (s StepDefinition) Accepts(name string, value any) bool {
	field, ok := s.Field(name)
	if !ok || field.Kind == KindDerived {
		return false
	}
	_, err := fromFields(s, map[string]any{name: value})
	return err == nil
}

// Merge overlays suggested values on d field by field. Fields listed in
// protected are kept as they are; keys the step does not define and values
// that do not decode into their field are skipped. It returns the new draft
// and the sorted names of the fields that were applied.
func (s StepDefinition) Merge(d StepDraft, suggested map[string]any, protected map[string]bool) (StepDraft, []string, error) {
	fields, err := toFields(s, d)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(suggested))
	for name := range suggested {
		names = append(names, name)
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		if protected[name] || !s.Accepts(name, suggested[name]) {
			continue
		}
		fields[name] = suggested[name]
		applied = append(applied, name)
	}
	if len(applied) == 0 {
		return d, nil, nil
	}
	next, err := fromFields(s, fields)
	if err != nil {
		return nil, nil, err
	}
	return Derive(next), applied, nil
}

// FieldText renders a draft field as text for display or editing.
func (s StepDefinition) FieldText(d StepDraft, name string) string {
	fields, err := toFields(s, d)
	if err != nil {
		return ""
	}
	switch v := fields[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

func toFields(s StepDefinition, d StepDraft) (map[string]any, error) {
	if d == nil {
		d = s.empty
	}
	if d.StepKey() != s.Key {
		return nil, fmt.Errorf("%w: draft for %s given to %s", ErrMalformedDraft, d.StepKey(), s.Key)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding draft: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding draft fields: %w", err)
	}
	return fields, nil
}

func fromFields(s StepDefinition, fields map[string]any) (StepDraft, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding draft fields: %w", err)
	}
	return s.Decode(data)
}

func parseValue(kind FieldKind, value string) any {
	switch kind {
	case KindBool:
		v := strings.ToLower(strings.TrimSpace(value))
		return v == "true" || v == "yes" || v == "y" || v == "1"
	case KindList:
		var out []string
		for _, part := range strings.Split(value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return value
	}
}
