package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/droidmind/droidpilot/api/schemas"
)

func TestScreenHashIgnoresDeepNodeChurn(t *testing.T) {
	base := screen("com.example",
		schemas.UiNode{Text: "Inbox", Clickable: true},
		schemas.UiNode{Text: "Compose", Clickable: true},
	)
	churned := screen("com.example",
		schemas.UiNode{Text: "Inbox", Clickable: true},
		schemas.UiNode{Text: "Compose draft saved", Clickable: true},
	)
	assert.Equal(t, ScreenHash(base), ScreenHash(churned),
		"changes past the first clickable node must not change the hash")
}

func TestScreenHashDistinguishesScreens(t *testing.T) {
	a := screen("com.example", schemas.UiNode{Text: "Inbox", Clickable: true})
	b := screen("com.example", schemas.UiNode{Text: "Settings", Clickable: true})
	c := screen("com.other", schemas.UiNode{Text: "Inbox", Clickable: true})
	d := screen("com.example",
		schemas.UiNode{Text: "Inbox", Clickable: true},
		schemas.UiNode{Text: "Archive", Clickable: true},
	)

	assert.NotEqual(t, ScreenHash(a), ScreenHash(b), "first clickable text differs")
	assert.NotEqual(t, ScreenHash(a), ScreenHash(c), "application differs")
	assert.NotEqual(t, ScreenHash(a), ScreenHash(d), "node count differs")
}

func TestScreenHashTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", 40)
	a := screen("com.example", schemas.UiNode{Text: long + "tail one", Clickable: true})
	b := screen("com.example", schemas.UiNode{Text: long + "tail two", Clickable: true})
	assert.Equal(t, ScreenHash(a), ScreenHash(b), "only a bounded text prefix feeds the hash")
}

func TestStuckDetectorScreenThreshold(t *testing.T) {
	d := NewStuckDetector(3)

	assert.False(t, d.RecordScreen(7))
	assert.False(t, d.RecordScreen(7))
	assert.True(t, d.RecordScreen(7), "third identical hash trips the detector")

	d.Reset()
	assert.False(t, d.RecordScreen(7), "reset must require a full new streak")
	assert.False(t, d.RecordScreen(7))
	assert.True(t, d.RecordScreen(7))
}

func TestStuckDetectorScreenStreakBreaks(t *testing.T) {
	d := NewStuckDetector(3)
	assert.False(t, d.RecordScreen(1))
	assert.False(t, d.RecordScreen(1))
	assert.False(t, d.RecordScreen(2), "a different hash resets the streak")
	assert.False(t, d.RecordScreen(2))
	assert.True(t, d.RecordScreen(2))
}

func TestStuckDetectorActionRepetition(t *testing.T) {
	d := NewStuckDetector(3)
	click := schemas.AgentAction{Kind: schemas.ActionClickByText, Params: map[string]string{"text": "Next"}}
	other := schemas.AgentAction{Kind: schemas.ActionClickByText, Params: map[string]string{"text": "Back"}}

	assert.False(t, d.RecordAction(click))
	assert.False(t, d.RecordAction(click))
	assert.True(t, d.RecordAction(click))

	d.Reset()
	assert.False(t, d.RecordAction(click))
	assert.False(t, d.RecordAction(other), "different params are a different action")
	assert.False(t, d.RecordAction(click))
}

func TestActionKeyIsOrderIndependent(t *testing.T) {
	a := schemas.AgentAction{Kind: schemas.ActionScroll, Params: map[string]string{"direction": "down", "speed": "fast"}}
	b := schemas.AgentAction{Kind: schemas.ActionScroll, Params: map[string]string{"speed": "fast", "direction": "down"}}
	assert.Equal(t, actionKey(a), actionKey(b))
}
