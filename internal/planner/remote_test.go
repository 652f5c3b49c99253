package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/droidmind/droidpilot/api/schemas"
)

// stubClient is a canned LLMClient recording the request it received.
type stubClient struct {
	response string
	err      error
	vision   bool
	lastReq  schemas.GenerationRequest
}

func (c *stubClient) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	c.lastReq = req
	return c.response, c.err
}

func (c *stubClient) SupportsVision() bool { return c.vision }

func plannerRequest() Request {
	return Request{
		Goal: "open the mail app",
		Snapshot: snap("com.android.launcher",
			schemas.UiNode{Text: "Apps", Clickable: true},
		),
		Step:     1,
		MaxSteps: 20,
	}
}

func TestRemotePlannerParsesFencedResponse(t *testing.T) {
	client := &stubClient{response: "```json\n" +
		`{"action": "open_app", "params": {"app": "com.google.android.gm"}, "reasoning": "mail is not in the foreground"}` +
		"\n```"}
	p := NewRemotePlanner("primary", client, 0.2, zaptest.NewLogger(t))

	action, err := p.NextAction(context.Background(), plannerRequest())
	require.NoError(t, err)

	assert.Equal(t, schemas.ActionOpenApp, action.Kind)
	assert.Equal(t, "com.google.android.gm", action.Param("app"))
	assert.Equal(t, "mail is not in the foreground", action.Reasoning)
	assert.True(t, client.lastReq.Options.ForceJSONFormat)
	assert.Contains(t, client.lastReq.UserPrompt, "open the mail app")
	assert.Contains(t, client.lastReq.UserPrompt, "app=com.android.launcher")
}

func TestRemotePlannerRejectsOutOfVocabularyAction(t *testing.T) {
	client := &stubClient{response: `{"action": "rm_rf", "params": {}, "reasoning": "nope"}`}
	p := NewRemotePlanner("primary", client, 0.2, zaptest.NewLogger(t))

	_, err := p.NextAction(context.Background(), plannerRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed vocabulary")
}

func TestRemotePlannerPropagatesClientFailure(t *testing.T) {
	client := &stubClient{err: errors.New("provider unavailable")}
	p := NewRemotePlanner("primary", client, 0.2, zaptest.NewLogger(t))

	_, err := p.NextAction(context.Background(), plannerRequest())
	assert.Error(t, err)
}

func TestRemotePlannerRejectsGarbage(t *testing.T) {
	client := &stubClient{response: "sure, I'd tap the first button!"}
	p := NewRemotePlanner("primary", client, 0.2, zaptest.NewLogger(t))

	_, err := p.NextAction(context.Background(), plannerRequest())
	assert.Error(t, err)
}

func TestVisionPlannerAttachesScreenshot(t *testing.T) {
	client := &stubClient{vision: true, response: `{"action": "back", "reasoning": "leaving the overlay"}`}
	p := NewVisionPlanner("secondary-vision", client, 0.2, zaptest.NewLogger(t))

	req := plannerRequest()
	req.Screenshot = []byte{0x89, 0x50, 0x4e, 0x47}

	action, err := p.NextAction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionBack, action.Kind)
	assert.Equal(t, req.Screenshot, client.lastReq.ImagePNG)
	assert.True(t, p.NeedsScreenshot())
}

func TestTextPlannerOmitsScreenshot(t *testing.T) {
	client := &stubClient{vision: true, response: `{"action": "wait", "reasoning": "screen is loading"}`}
	p := NewRemotePlanner("secondary-text", client, 0.2, zaptest.NewLogger(t))

	req := plannerRequest()
	req.Screenshot = []byte{1}

	_, err := p.NextAction(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, client.lastReq.ImagePNG)
	assert.False(t, p.NeedsScreenshot())
}
