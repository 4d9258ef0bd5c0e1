package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SAP-F-2025/attempt-engine/internal/errors"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

func TestValidator_ValidateQuestion(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		q      models.Question
		fields []string
	}{
		{
			name: "valid",
			q:    models.Question{ID: "q1", Type: models.QuestionShortText, Prompt: "Name it", Points: 1},
		},
		{
			name:   "unknown type",
			q:      models.Question{ID: "q1", Type: "matrix", Prompt: "?", Points: 1},
			fields: []string{"type"},
		},
		{
			name:   "missing prompt and points",
			q:      models.Question{ID: "q1", Type: models.QuestionEssay},
			fields: []string{"prompt", "points"},
		},
		{
			name:   "choice without options",
			q:      models.Question{ID: "q1", Type: models.QuestionSingleChoice, Prompt: "?", Points: 1},
			fields: []string{"options"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateQuestion(&tt.q)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var errs apperrors.ValidationErrors
			require.ErrorAs(t, err, &errs)
			var got []string
			for _, e := range errs {
				got = append(got, e.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestValidator_AttemptStatus(t *testing.T) {
	v := NewValidator()
	type statusHolder struct {
		Status models.AttemptStatus `json:"status" validate:"attempt_status"`
	}

	assert.NoError(t, v.Validate(statusHolder{Status: models.AttemptCompleted}))

	err := v.Validate(statusHolder{Status: "paused"})
	var errs apperrors.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, "status", errs[0].Field)
	assert.Contains(t, errs[0].Message, "valid attempt status")
}
