package forms

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

func intakeTemplate() Template {
	return Template{
		Name: "General intake",
		Fields: []Field{
			{ID: "complaint", Type: FieldTextarea, Label: "Chief complaint", Required: true},
			{ID: "temp", Type: FieldNumber, Label: "Temperature"},
			{ID: "severity", Type: FieldDropdown, Options: []string{"mild", "moderate", "severe"}, Required: true},
			{ID: "symptoms", Type: FieldCheckbox, Options: []string{"cough", "fever", "rash"}},
			{ID: "consent", Type: FieldCheckbox, Required: true},
			{ID: "onset", Type: FieldDate},
		},
	}
}

func answers(t *testing.T, raw string) Answers {
	t.Helper()
	var a Answers
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	return a
}

func TestValidateAcceptsCompleteAnswers(t *testing.T) {
	err := intakeTemplate().Validate(answers(t, `{
		"complaint": "headache for two days",
		"temp": 38.2,
		"severity": "moderate",
		"symptoms": ["fever"],
		"consent": true,
		"onset": "2026-10-18"
	}`))
	assert.NoError(t, err)
}

func TestValidateAcceptsQuotedNumber(t *testing.T) {
	err := intakeTemplate().Validate(answers(t, `{"complaint":"x","severity":"mild","consent":true,"temp":"37.5"}`))
	assert.NoError(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing required", `{"severity":"mild","consent":true}`, "complaint"},
		{"blank required", `{"complaint":"","severity":"mild","consent":true}`, "complaint"},
		{"not a number", `{"complaint":"x","severity":"mild","consent":true,"temp":"hot"}`, "temp"},
		{"unknown option", `{"complaint":"x","severity":"extreme","consent":true}`, "severity"},
		{"unknown checkbox option", `{"complaint":"x","severity":"mild","consent":true,"symptoms":["itch"]}`, "symptoms"},
		{"unchecked consent", `{"complaint":"x","severity":"mild","consent":false}`, "consent"},
		{"bad date", `{"complaint":"x","severity":"mild","consent":true,"onset":"yesterday"}`, "onset"},
		{"unknown field", `{"complaint":"x","severity":"mild","consent":true,"extra":1}`, "extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := intakeTemplate().Validate(answers(t, tt.raw))
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestCheckFields(t *testing.T) {
	assert.NoError(t, CheckFields(intakeTemplate().Fields))
	assert.Error(t, CheckFields([]Field{{ID: "a", Type: "slider"}}))
	assert.Error(t, CheckFields([]Field{{ID: "a", Type: FieldDropdown}}))
	assert.Error(t, CheckFields([]Field{{ID: "a", Type: FieldText}, {ID: "a", Type: FieldText}}))
}
