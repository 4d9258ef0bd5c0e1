package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttemptStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status AttemptStatus
		want   bool
	}{
		{AttemptCreated, false},
		{AttemptInProgress, false},
		{AttemptCompleted, true},
		{AttemptAbandoned, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestAttemptFields_MapSkipsNil(t *testing.T) {
	score := 80
	updates := AttemptFields{Score: &score}.Map()
	assert.Equal(t, map[string]interface{}{"score": 80}, updates)
}

func TestExecutionResult_Succeeded(t *testing.T) {
	var missing *ExecutionResult
	assert.False(t, missing.Succeeded())
	assert.False(t, (&ExecutionResult{Verdict: VerdictRuntimeError}).Succeeded())
	assert.True(t, (&ExecutionResult{Verdict: VerdictAccepted}).Succeeded())
}
