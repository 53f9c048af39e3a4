package forms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldDropdown FieldType = "dropdown"
	FieldCheckbox FieldType = "checkbox"
	FieldTextarea FieldType = "textarea"
	FieldDate     FieldType = "date"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldDropdown, FieldCheckbox, FieldTextarea, FieldDate:
		return true
	}
	return false
}

type Field struct {
	ID       string    `json:"id"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// Template is a clinic's assessment form.
type Template struct {
	ID        uuid.UUID `json:"id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty,omitempty"`
	Fields    []Field   `json:"fields"`
}

// Answers maps field ids to raw JSON values as submitted.
type Answers map[string]json.RawMessage

// Validate checks answers against the template's fields. Unknown keys are
// rejected so nothing outside the form is stored with the assessment.
func (t Template) Validate(answers Answers) error {
	known := make(map[string]Field, len(t.Fields))
	for _, f := range t.Fields {
		known[f.ID] = f
	}
	for id := range answers {
		if _, ok := known[id]; !ok {
			return apperr.Validation(fmt.Sprintf("unknown field %q", id)).With("field", id)
		}
	}
	for _, f := range t.Fields {
		raw, ok := answers[f.ID]
		if !ok || isEmpty(raw) {
			if f.Required {
				return apperr.Validation(fmt.Sprintf("%s is required", f.label())).With("field", f.ID)
			}
			continue
		}
		if err := f.check(raw); err != nil {
			return apperr.Validation(fmt.Sprintf("%s: %v", f.label(), err)).With("field", f.ID)
		}
	}
	return nil
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

func (f Field) check(raw json.RawMessage) error {
	switch f.Type {
	case FieldText, FieldTextarea:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("expected text")
		}
	case FieldNumber:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			// numbers typed into text inputs arrive quoted
			var s string
			if json.Unmarshal(raw, &s) != nil {
				return fmt.Errorf("expected a number")
			}
			n = json.Number(strings.TrimSpace(s))
		}
		if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
			return fmt.Errorf("expected a number")
		}
	case FieldDropdown:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("expected one option")
		}
		if !f.hasOption(s) {
			return fmt.Errorf("%q is not an option", s)
		}
	case FieldCheckbox:
		if len(f.Options) == 0 {
			var b bool
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("expected true or false")
			}
			if f.Required && !b {
				return fmt.Errorf("must be checked")
			}
			return nil
		}
		var picked []string
		if err := json.Unmarshal(raw, &picked); err != nil {
			return fmt.Errorf("expected a list of options")
		}
		for _, p := range picked {
			if !f.hasOption(p) {
				return fmt.Errorf("%q is not an option", p)
			}
		}
		if f.Required && len(picked) == 0 {
			return fmt.Errorf("pick at least one option")
		}
	case FieldDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("expected a date")
		}
		if _, err := availability.ParseDate(s); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported field type %q", f.Type)
	}
	return nil
}

func (f Field) hasOption(v string) bool {
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

func isEmpty(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == `""`
}

// CheckFields validates a template definition.
func CheckFields(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.ID == "" {
			return apperr.Validation("field id is required")
		}
		if seen[f.ID] {
			return apperr.Validation(fmt.Sprintf("duplicate field %q", f.ID))
		}
		seen[f.ID] = true
		if !f.Type.Valid() {
			return apperr.Validation(fmt.Sprintf("field %q has unsupported type %q", f.ID, f.Type))
		}
		if f.Type == FieldDropdown && len(f.Options) == 0 {
			return apperr.Validation(fmt.Sprintf("dropdown %q needs options", f.ID))
		}
	}
	return nil
}
