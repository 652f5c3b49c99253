// Package planner selects the single next UI action for a goal. Planners
// form a priority-ordered fallback chain: remote language-model planners
// first, a deterministic heuristic last, so the caller always gets an action.
package planner

import (
	"context"

	"github.com/droidmind/droidpilot/api/schemas"
)

// Request carries everything a planner may use to choose the next action.
type Request struct {
	// Goal is the cleaned (hint-stripped, sanitized) goal text.
	Goal string
	// TargetApp is the explicit target application hint, if any.
	TargetApp string
	// Snapshot is the current screen. Never nil when NextAction is called.
	Snapshot *schemas.ScreenSnapshot
	// Step is the 1-based current step; MaxSteps the budget.
	Step     int
	MaxSteps int
	// Screenshot optionally carries a PNG for vision-capable planners.
	Screenshot []byte
	// QAMode asks the planner to self-report failed assertions via the
	// leading "[FAIL]" reasoning marker.
	QAMode bool
}

// Planner chooses exactly one next action. Implementations either return a
// valid action from the closed vocabulary or an error that moves the chain
// to its next link.
type Planner interface {
	Name() string
	NextAction(ctx context.Context, req Request) (schemas.AgentAction, error)
}

// NeedsScreenshot is implemented by planners that are only worth calling
// when a screenshot is available.
type NeedsScreenshot interface {
	NeedsScreenshot() bool
}
