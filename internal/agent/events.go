package agent

import (
	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
)

// EventKind names one lifecycle event of a run.
type EventKind string

const (
	EventStart        EventKind = "start"
	EventStep         EventKind = "step"
	EventAction       EventKind = "action"
	EventActionResult EventKind = "action_result"
	EventThink        EventKind = "think"
	EventComplete     EventKind = "complete"
	EventReport       EventKind = "report"
)

// Event is one fire-and-forget lifecycle notification. Ordering within a
// single run is guaranteed; events are purely observational and never
// required for correctness.
type Event struct {
	Kind          EventKind
	Goal          string
	Step          int
	ApplicationID string
	ElementCount  int
	Action        *schemas.AgentAction
	Outcome       *schemas.ActionOutcome
	Message       string
	Steps         int
	Report        *schemas.TestRun
}

// EventSink receives lifecycle events. Implementations must not block.
type EventSink interface {
	Emit(ev Event)
}

// LogSink writes events to the structured log. The default sink.
type LogSink struct {
	Logger *zap.Logger
}

// Emit logs the event at a level matching its significance.
func (s LogSink) Emit(ev Event) {
	switch ev.Kind {
	case EventStart:
		s.Logger.Info("Run started", zap.String("goal", ev.Goal))
	case EventStep:
		s.Logger.Info("Step", zap.Int("step", ev.Step),
			zap.String("app", ev.ApplicationID), zap.Int("elements", ev.ElementCount))
	case EventAction:
		s.Logger.Info("Action chosen", zap.String("kind", string(ev.Action.Kind)),
			zap.Any("params", ev.Action.Params), zap.String("reasoning", ev.Action.Reasoning))
	case EventActionResult:
		s.Logger.Info("Action result", zap.Bool("success", ev.Outcome.Success),
			zap.String("message", ev.Outcome.Message))
	case EventThink:
		s.Logger.Debug("Thinking", zap.String("message", ev.Message))
	case EventComplete:
		s.Logger.Info("Run complete", zap.Int("steps", ev.Steps), zap.String("message", ev.Message))
	case EventReport:
		s.Logger.Info("QA report", zap.Bool("overall_passed", ev.Report.OverallPassed),
			zap.Int("passed", ev.Report.PassedSteps), zap.Int("failed", ev.Report.FailedSteps))
	}
}

// FuncSink adapts a callback into an EventSink.
type FuncSink func(ev Event)

// Emit invokes the callback.
func (f FuncSink) Emit(ev Event) { f(ev) }

// MultiSink fans one event out to several sinks.
type MultiSink []EventSink

// Emit forwards to each sink in order.
func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
