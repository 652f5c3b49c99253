package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
	"github.com/droidmind/droidpilot/internal/config"
	"github.com/droidmind/droidpilot/internal/planner"
	"github.com/droidmind/droidpilot/internal/safety"
)

// ErrRunActive is returned when Run is called while another run is active.
// Concurrent runs are rejected, not superseded: the caller must Cancel and
// await termination before starting another.
var ErrRunActive = errors.New("a run is already active on this agent")

// ConfirmFunc asks the caller to approve a high-risk action. It may block;
// the controller bounds it with the configured confirmation timeout, and a
// timeout counts as denial.
type ConfirmFunc func(ctx context.Context, action schemas.AgentAction) bool

// Decider is the planning boundary the controller calls once per iteration.
// It must always return a value; degradation happens inside the chain.
type Decider interface {
	NextAction(ctx context.Context, req planner.Request) schemas.AgentAction
}

// Reporter persists a QA TestRun artifact and returns its location.
type Reporter interface {
	Write(run schemas.TestRun) (string, error)
}

// Controller orchestrates the observe, plan, act, settle cycle on a
// dedicated background worker. All iteration state is confined to the
// worker; the only cross-goroutine surface is Run/Cancel.
type Controller struct {
	cfg            config.AgentConfig
	logger         *zap.Logger
	device         schemas.DeviceAutomator
	decider        Decider
	gate           *safety.Gate
	sink           EventSink
	confirm        ConfirmFunc
	confirmTimeout time.Duration
	reporter       Reporter

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
}

// New wires a Controller from explicit dependencies. sink, confirm, and
// reporter may be nil; a nil confirm denies every high-risk action.
func New(
	cfg config.AgentConfig,
	confirmTimeout time.Duration,
	device schemas.DeviceAutomator,
	decider Decider,
	gate *safety.Gate,
	sink EventSink,
	confirm ConfirmFunc,
	reporter Reporter,
	logger *zap.Logger,
) *Controller {
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	return &Controller{
		cfg:            cfg,
		logger:         logger.Named("agent"),
		device:         device,
		decider:        decider,
		gate:           gate,
		sink:           sink,
		confirm:        confirm,
		confirmTimeout: confirmTimeout,
		reporter:       reporter,
	}
}

// Run executes the control loop for one goal and blocks until the terminal
// AgentResult. A second Run while one is active returns ErrRunActive.
func (c *Controller) Run(ctx context.Context, rawGoal string) (schemas.AgentResult, error) {
	if !c.running.CompareAndSwap(false, true) {
		return schemas.AgentResult{}, ErrRunActive
	}
	defer c.running.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	// The safety gate sees the raw goal before any planner or automation
	// call; a positive match terminates the run at zero steps.
	if c.gate.DetectInjection(rawGoal) {
		result := schemas.AgentResult{Success: false, Message: "goal rejected: prompt injection detected", Steps: 0}
		c.emit(Event{Kind: EventComplete, Steps: 0, Message: result.Message})
		return result, nil
	}

	goal := ParseGoal(rawGoal)
	goal.Cleaned = c.gate.Sanitize(goal.Cleaned)
	goal.QAMode = goal.QAMode || c.cfg.ForceQA
	runID := uuid.NewString()[:8]
	logger := c.logger.With(zap.String("run_id", runID))
	logger.Info("Agent run starting", zap.String("goal", goal.Cleaned), zap.Bool("qa_mode", goal.QAMode))
	c.emit(Event{Kind: EventStart, Goal: goal.Cleaned})

	// The loop runs on its own worker; Run only waits for its result so a
	// caller-side Cancel can release the loop mid-settle.
	type loopOutput struct {
		result schemas.AgentResult
		report *schemas.TestRun
	}
	outCh := make(chan loopOutput, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered in agent loop", zap.Any("panic_value", r), zap.Stack("stack"))
				outCh <- loopOutput{result: schemas.AgentResult{
					Success: false,
					Message: fmt.Sprintf("internal fault: %v", r),
				}}
			}
		}()
		result, report := c.loop(runCtx, runID, goal, logger)
		outCh <- loopOutput{result: result, report: report}
	}()

	out := <-outCh
	c.emit(Event{Kind: EventComplete, Steps: out.result.Steps, Message: out.result.Message})

	if out.report != nil {
		c.emit(Event{Kind: EventReport, Report: out.report})
		if c.reporter != nil {
			if path, err := c.reporter.Write(*out.report); err != nil {
				logger.Error("Failed to write QA report", zap.Error(err))
			} else {
				logger.Info("QA report written", zap.String("path", path))
			}
		}
	}
	return out.result, nil
}

// Cancel requests cooperative termination: the flag is polled at the top of
// each iteration and at recovery points, in-flight calls are not
// interrupted.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// loop is the bounded-retry state machine. Phases per iteration, strictly
// ordered: observe, stuck check, self-heal, plan, termination check, safety
// check, act, bookkeeping, settle.
func (c *Controller) loop(ctx context.Context, runID string, goal Goal, logger *zap.Logger) (schemas.AgentResult, *schemas.TestRun) {
	detector := NewStuckDetector(c.cfg.StuckThreshold)
	var qa *qaRecorder
	if goal.QAMode {
		qa = &qaRecorder{}
	}
	finish := func(result schemas.AgentResult, success bool) (schemas.AgentResult, *schemas.TestRun) {
		if qa == nil {
			return result, nil
		}
		run := qa.Finalize(runID, goal, success, c.cfg.QAPassRatio)
		return result, &run
	}

	// Pre-flight: force a fresh launch of the named application so the run
	// never reuses stale task state.
	if target := c.preflightTarget(goal); target != "" {
		logger.Info("Pre-flight launch", zap.String("app", target))
		outcome := c.device.OpenApp(ctx, target)
		if !outcome.Success {
			logger.Warn("Pre-flight launch failed", zap.String("message", outcome.Message))
		}
		c.settle(ctx)
	}

	steps := 0
	observeFailures := 0
	consecutiveFailures := 0
	actionStuck := false
	lastTyped := ""

	for steps < c.cfg.MaxSteps {
		if ctx.Err() != nil {
			return finish(schemas.AgentResult{Success: false, Message: "run cancelled", Steps: steps}, false)
		}

		// -- OBSERVE --
		snap, err := c.device.Snapshot(ctx)
		if err != nil || snap == nil {
			observeFailures++
			if observeFailures >= c.cfg.MaxObserveFailures {
				msg := fmt.Sprintf("device automation unavailable after %d consecutive observations", observeFailures)
				if err != nil {
					msg = fmt.Sprintf("%s: %v", msg, err)
				}
				return finish(schemas.AgentResult{Success: false, Message: msg, Steps: steps}, false)
			}
			c.emit(Event{Kind: EventThink, Message: "no UI observable, waiting"})
			c.settle(ctx)
			continue // Does not count as a step.
		}
		observeFailures = 0
		steps++
		c.emit(Event{Kind: EventStep, Step: steps, ApplicationID: snap.ApplicationID, ElementCount: len(snap.Nodes)})

		// -- STUCK CHECK --
		screenStuck := detector.RecordScreen(ScreenHash(snap))
		if screenStuck || actionStuck {
			logger.Info("Stuck detected, recovering",
				zap.Bool("screen_stuck", screenStuck), zap.Bool("action_stuck", actionStuck))
			if done := c.recoverStuck(ctx, snap, screenStuck, lastTyped, steps); done != nil {
				return finish(*done, done.Success)
			}
			detector.Reset()
			actionStuck = false
			c.settle(ctx)
			continue // Consumed the step but not a planning call.
		}

		// -- SELF-HEAL --
		// The agent must never plan against its own host application's UI.
		if steps > 1 && snap.ApplicationID == c.cfg.HostAppID {
			c.emit(Event{Kind: EventThink, Message: "host application regained focus, backing out"})
			c.device.Back(ctx)
			c.settle(ctx)
			continue
		}

		// -- PLAN --
		action := c.decider.NextAction(ctx, planner.Request{
			Goal:       goal.Cleaned,
			TargetApp:  goal.TargetApp,
			Snapshot:   snap,
			Step:       steps,
			MaxSteps:   c.cfg.MaxSteps,
			Screenshot: c.device.Screenshot(ctx),
			QAMode:     goal.QAMode,
		})
		c.emit(Event{Kind: EventAction, Action: &action})

		// -- TERMINATION CHECK --
		if action.Kind == schemas.ActionComplete {
			msg := action.Reasoning
			if msg == "" {
				msg = "goal completed"
			}
			return finish(schemas.AgentResult{Success: true, Message: msg, Steps: steps}, true)
		}

		// -- SAFETY CHECK --
		if c.gate.IsHighRisk(action) || !c.gate.ValidateAction(action) {
			if !c.requestConfirmation(ctx, action) {
				c.emit(Event{Kind: EventThink, Message: "high-risk action denied, skipping"})
				c.settle(ctx)
				continue // Skip execution, no penalty.
			}
		}

		// -- ACT --
		// Re-observe right before executing: the UI may have drifted since
		// the planning snapshot, and index targets must resolve fresh.
		fresh := snap
		if f, err := c.device.Snapshot(ctx); err == nil && f != nil {
			fresh = f
		}
		outcome := c.execute(ctx, action, fresh)
		c.emit(Event{Kind: EventActionResult, Outcome: &outcome})

		// -- BOOKKEEPING --
		actionStuck = detector.RecordAction(action)
		if outcome.Success {
			consecutiveFailures = 0
			if action.Kind == schemas.ActionInputText {
				lastTyped = action.Param("text")
			}
		} else {
			consecutiveFailures++
			logger.Debug("Action failed", zap.Int("consecutive_failures", consecutiveFailures),
				zap.String("message", outcome.Message))
		}
		if qa != nil {
			qa.Record(steps, action, outcome)
		}

		// -- SETTLE --
		c.settle(ctx)
	}

	return finish(schemas.AgentResult{
		Success: false,
		Message: fmt.Sprintf("step budget of %d exhausted before the goal completed", c.cfg.MaxSteps),
		Steps:   steps,
	}, false)
}

// preflightTarget picks the application to launch before iteration 1: the
// explicit hint first, then a known-app keyword in the goal.
func (c *Controller) preflightTarget(goal Goal) string {
	if goal.TargetApp != "" {
		return goal.TargetApp
	}
	return resolveKnownApp(c.cfg.KnownApps, goal.Cleaned)
}

// recoverStuck performs one context-sensitive recovery action. A non-nil
// result terminates the loop (implicit success when a composed message was
// just sent).
func (c *Controller) recoverStuck(ctx context.Context, snap *schemas.ScreenSnapshot, screenStuck bool, lastTyped string, steps int) *schemas.AgentResult {
	if !screenStuck {
		// Action-stuck: reveal new candidates instead of repeating the
		// same click.
		c.emit(Event{Kind: EventThink, Message: "same action repeating, scrolling for new candidates"})
		c.device.ScrollDown(ctx)
		return nil
	}

	// Mid-composition with an unsent non-empty input: submit rather than
	// navigate away from the draft.
	for _, n := range snap.Nodes {
		if n.Editable && strings.TrimSpace(n.Text) != "" {
			c.emit(Event{Kind: EventThink, Message: "screen stuck mid-composition, submitting draft"})
			c.device.PressEnter(ctx)
			return nil
		}
	}

	// The compose field was cleared after we typed into it: the message
	// went out, so the goal is implicitly achieved.
	if lastTyped != "" {
		for _, n := range snap.Nodes {
			if n.Editable && strings.TrimSpace(n.Text) == "" {
				return &schemas.AgentResult{
					Success: true,
					Message: "compose field cleared after input; treating the submission as completed",
					Steps:   steps,
				}
			}
		}
	}

	c.emit(Event{Kind: EventThink, Message: "screen stuck, navigating back"})
	c.device.Back(ctx)
	return nil
}

// execute resolves the action against the fresh snapshot and dispatches it
// to the automation provider.
func (c *Controller) execute(ctx context.Context, action schemas.AgentAction, fresh *schemas.ScreenSnapshot) schemas.ActionOutcome {
	switch action.Kind {
	case schemas.ActionOpenApp:
		return c.device.OpenApp(ctx, action.Param("app"))
	case schemas.ActionClickByText:
		return c.device.ClickByText(ctx, action.Param("text"))
	case schemas.ActionClickByLabel:
		return c.device.ClickByLabel(ctx, action.Param("label"))
	case schemas.ActionClickByIndex:
		index, err := strconv.Atoi(action.Param("index"))
		if err != nil {
			return schemas.ActionOutcome{Success: false, Message: fmt.Sprintf("invalid index %q", action.Param("index"))}
		}
		if index < 0 || index >= len(fresh.Nodes) {
			return schemas.ActionOutcome{Success: false,
				Message: fmt.Sprintf("index %d out of range for %d visible nodes", index, len(fresh.Nodes))}
		}
		return c.device.ClickByIndex(ctx, index)
	case schemas.ActionInputText:
		return c.device.InputText(ctx, action.Param("text"))
	case schemas.ActionPressEnter:
		return c.device.PressEnter(ctx)
	case schemas.ActionScroll:
		if action.Param("direction") == "up" {
			return c.device.ScrollUp(ctx)
		}
		return c.device.ScrollDown(ctx)
	case schemas.ActionBack:
		return c.device.Back(ctx)
	case schemas.ActionWait:
		return schemas.ActionOutcome{Success: true, Message: "waited one settle interval"}
	default:
		return schemas.ActionOutcome{Success: false, Message: fmt.Sprintf("unknown action kind %q", action.Kind)}
	}
}

// requestConfirmation runs the caller-supplied callback bounded by the
// confirmation timeout. No callback, a timeout, or cancellation all count
// as denial.
func (c *Controller) requestConfirmation(ctx context.Context, action schemas.AgentAction) bool {
	if c.confirm == nil {
		return false
	}

	confirmCtx := ctx
	var cancel context.CancelFunc
	if c.confirmTimeout > 0 {
		confirmCtx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	resultCh := make(chan bool, 1)
	go func() {
		resultCh <- c.confirm(confirmCtx, action)
	}()

	select {
	case approved := <-resultCh:
		return approved
	case <-confirmCtx.Done():
		c.logger.Warn("Confirmation request timed out or was cancelled; denying action",
			zap.String("kind", string(action.Kind)))
		return false
	}
}

// settle sleeps the fixed inter-action delay, waking early on cancellation.
func (c *Controller) settle(ctx context.Context) {
	if c.cfg.SettleDelay <= 0 {
		return
	}
	timer := time.NewTimer(c.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// emit forwards a lifecycle event, shielding the loop from sink faults.
func (c *Controller) emit(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Event sink panicked", zap.Any("panic_value", r))
		}
	}()
	c.sink.Emit(ev)
}
