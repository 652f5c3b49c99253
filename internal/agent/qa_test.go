package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidmind/droidpilot/api/schemas"
)

func TestQARecorderMarksFailures(t *testing.T) {
	r := &qaRecorder{}
	ok := schemas.ActionOutcome{Success: true, Message: "clicked"}

	r.Record(1, schemas.AgentAction{Kind: schemas.ActionClickByText, Reasoning: "opening the inbox"}, ok)
	r.Record(2, schemas.AgentAction{Kind: schemas.ActionClickByText, Reasoning: "[FAIL] expected a badge but none is visible"}, ok)
	r.Record(3, schemas.AgentAction{Kind: schemas.ActionClickByText, Reasoning: "continuing"},
		schemas.ActionOutcome{Success: false, Message: "no such node"})

	run := r.Finalize("abc12345", Goal{Raw: "verify the inbox"}, true, 0.5)

	require.Len(t, run.Steps, 3)
	assert.True(t, run.Steps[0].Passed)
	assert.False(t, run.Steps[1].Passed, "a [FAIL] reasoning marker fails the step even when execution succeeded")
	assert.False(t, run.Steps[2].Passed, "an execution failure fails the step")
	assert.Equal(t, 1, run.PassedSteps)
	assert.Equal(t, 2, run.FailedSteps)
}

func TestQAOverallVerdict(t *testing.T) {
	pass := schemas.ActionOutcome{Success: true}
	fail := schemas.ActionOutcome{Success: false}

	tests := []struct {
		name     string
		outcomes []schemas.ActionOutcome
		success  bool
		want     bool
	}{
		{"all steps passed", []schemas.ActionOutcome{pass, pass, pass}, true, true},
		{"majority passed", []schemas.ActionOutcome{pass, pass, fail}, true, true},
		{"exactly half passed is not enough", []schemas.ActionOutcome{pass, pass, fail, fail}, true, false},
		{"loop failure overrides step results", []schemas.ActionOutcome{pass, pass, pass}, false, false},
		{"no recorded steps", nil, true, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &qaRecorder{}
			for i, o := range tc.outcomes {
				r.Record(i+1, schemas.AgentAction{Kind: schemas.ActionWait}, o)
			}
			run := r.Finalize("run00001", Goal{Raw: "verify something"}, tc.success, 0.5)
			assert.Equal(t, tc.want, run.OverallPassed)
		})
	}
}
