package planner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
)

// Chain iterates a priority-ordered list of planners and returns the first
// successful decision. It never fails the caller: when every link errors,
// it degrades to a one-interval wait.
type Chain struct {
	logger   *zap.Logger
	planners []Planner
	// linkTimeout bounds each link on top of the transport timeout inside
	// the remote clients, keeping the interactive loop responsive.
	linkTimeout time.Duration
}

// NewChain builds a chain over the given planners, first link tried first.
func NewChain(logger *zap.Logger, linkTimeout time.Duration, planners ...Planner) *Chain {
	return &Chain{
		logger:      logger.Named("planner_chain"),
		planners:    planners,
		linkTimeout: linkTimeout,
	}
}

// NextAction walks the chain. A transport or parse failure in one link moves
// to the next without retrying the same link.
func (c *Chain) NextAction(ctx context.Context, req Request) schemas.AgentAction {
	for _, p := range c.planners {
		if ns, ok := p.(NeedsScreenshot); ok && ns.NeedsScreenshot() && len(req.Screenshot) == 0 {
			c.logger.Debug("Skipping vision planner, no screenshot available", zap.String("planner", p.Name()))
			continue
		}

		linkCtx := ctx
		var cancel context.CancelFunc
		if c.linkTimeout > 0 {
			linkCtx, cancel = context.WithTimeout(ctx, c.linkTimeout)
		}
		action, err := p.NextAction(linkCtx, req)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			c.logger.Warn("Planner link failed, degrading to next",
				zap.String("planner", p.Name()), zap.Error(err))
			continue
		}

		c.logger.Debug("Planner decided next action",
			zap.String("planner", p.Name()), zap.String("action", string(action.Kind)))
		return action
	}

	// Unreachable when the heuristic planner terminates the chain, kept as
	// a defined degradation for misassembled chains.
	c.logger.Error("Every planner link failed; waiting one interval")
	return schemas.AgentAction{Kind: schemas.ActionWait, Reasoning: "all planners unavailable"}
}
