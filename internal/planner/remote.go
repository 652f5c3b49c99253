package planner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
	"github.com/droidmind/droidpilot/internal/llmutil"
)

// RemotePlanner adapts one LLM client into a Planner. Unparsable or
// out-of-vocabulary responses are reported as errors so the chain degrades,
// never raised to the loop.
type RemotePlanner struct {
	name        string
	client      schemas.LLMClient
	logger      *zap.Logger
	temperature float64
	// visionOnly marks the chain link that is only worth calling when a
	// screenshot exists (the text-only link of the same client follows it).
	visionOnly bool
}

var _ Planner = (*RemotePlanner)(nil)

// NewRemotePlanner wraps a client as a text planner.
func NewRemotePlanner(name string, client schemas.LLMClient, temperature float64, logger *zap.Logger) *RemotePlanner {
	return &RemotePlanner{
		name:        name,
		client:      client,
		logger:      logger.Named("planner." + name),
		temperature: temperature,
	}
}

// NewVisionPlanner wraps a vision-capable client as a screenshot-requiring
// chain link.
func NewVisionPlanner(name string, client schemas.LLMClient, temperature float64, logger *zap.Logger) *RemotePlanner {
	p := NewRemotePlanner(name, client, temperature, logger)
	p.visionOnly = true
	return p
}

// Name identifies the chain link in logs.
func (p *RemotePlanner) Name() string { return p.name }

// NeedsScreenshot reports whether this link should be skipped without one.
func (p *RemotePlanner) NeedsScreenshot() bool { return p.visionOnly }

// wireAction is the single JSON object expected back from the provider.
type wireAction struct {
	Action    string            `json:"action"`
	Params    map[string]string `json:"params"`
	Reasoning string            `json:"reasoning"`
}

// NextAction serializes the instruction template, calls the provider once
// (no per-link retries beyond the client's own transient backoff), and
// validates the response against the closed vocabulary.
func (p *RemotePlanner) NextAction(ctx context.Context, req Request) (schemas.AgentAction, error) {
	genReq := schemas.GenerationRequest{
		SystemPrompt: buildSystemPrompt(req.QAMode),
		UserPrompt:   buildUserPrompt(req),
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
			Temperature:     p.temperature,
		},
	}
	if p.visionOnly && p.client.SupportsVision() {
		genReq.ImagePNG = req.Screenshot
	}

	response, err := p.client.Generate(ctx, genReq)
	if err != nil {
		return schemas.AgentAction{}, fmt.Errorf("llm generation failed: %w", err)
	}

	wire, err := llmutil.ParseJSONResponse[wireAction](response)
	if err != nil {
		p.logger.Warn("Failed to parse planner response", zap.String("raw_response", response), zap.Error(err))
		return schemas.AgentAction{}, fmt.Errorf("failed to parse planner response: %w", err)
	}

	kind := schemas.ActionKind(wire.Action)
	if !schemas.ValidActionKinds[kind] {
		p.logger.Warn("Planner returned out-of-vocabulary action", zap.String("action", wire.Action))
		return schemas.AgentAction{}, fmt.Errorf("action %q is outside the closed vocabulary", wire.Action)
	}

	return schemas.AgentAction{
		Kind:      kind,
		Params:    wire.Params,
		Reasoning: wire.Reasoning,
	}, nil
}
