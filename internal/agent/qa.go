package agent

import (
	"strings"
	"time"

	"github.com/droidmind/droidpilot/api/schemas"
)

// failMarker is the leading reasoning convention by which the remote
// planner self-reports a failed assertion.
const failMarker = "[FAIL]"

// qaRecorder accumulates per-step pass/fail records while QA mode is
// active. Created per run, finalized exactly once at loop termination.
type qaRecorder struct {
	steps  []schemas.TestStep
	passed int
}

// Record appends one executed action. A step passes when the outcome
// succeeded and the planner did not flag the assertion as failed.
func (r *qaRecorder) Record(stepNumber int, action schemas.AgentAction, outcome schemas.ActionOutcome) {
	passed := outcome.Success && !strings.HasPrefix(strings.TrimSpace(action.Reasoning), failMarker)
	if passed {
		r.passed++
	}
	r.steps = append(r.steps, schemas.TestStep{
		StepNumber:     stepNumber,
		Action:         action.Kind,
		Params:         action.Params,
		Reasoning:      action.Reasoning,
		OutcomeMessage: outcome.Message,
		Passed:         passed,
	})
}

// Finalize builds the TestRun artifact. The run passes overall iff the loop
// ended successfully and strictly more than passRatio of recorded steps
// passed.
func (r *qaRecorder) Finalize(runID string, goal Goal, success bool, passRatio float64) schemas.TestRun {
	total := len(r.steps)
	overall := success && float64(r.passed) > passRatio*float64(total)
	return schemas.TestRun{
		RunID:         runID,
		Goal:          goal.Raw,
		TargetApp:     goal.TargetApp,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Steps:         r.steps,
		PassedSteps:   r.passed,
		FailedSteps:   total - r.passed,
		OverallPassed: overall,
	}
}
