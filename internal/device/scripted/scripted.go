// Package scripted provides a deterministic in-memory device automator.
// It backs dry runs and tests: the device is modelled as a small set of
// named screens with transitions triggered by actions.
package scripted

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/droidmind/droidpilot/api/schemas"
)

// Screen is one synthetic UI state.
type Screen struct {
	Name          string
	ApplicationID string
	Nodes         []schemas.UiNode
}

// Snapshot materializes the screen as an observation, applying the same
// filtering and cap as a real device dump.
func (s Screen) Snapshot() *schemas.ScreenSnapshot {
	snap := &schemas.ScreenSnapshot{ApplicationID: s.ApplicationID}
	for _, n := range s.Nodes {
		if !n.Interesting() {
			continue
		}
		snap.TotalNodeCount++
		if len(snap.Nodes) < schemas.MaxSnapshotNodes {
			n.Index = len(snap.Nodes)
			snap.Nodes = append(snap.Nodes, n)
		}
	}
	return snap
}

// Transition moves the device to a new screen when its trigger matches an
// executed action.
type Transition struct {
	From  string
	Kind  schemas.ActionKind
	Param string // matched against the action's primary parameter; "" matches any
	To    string
}

// Device is a scripted automator. All methods are safe for concurrent use.
type Device struct {
	mu          sync.Mutex
	screens     map[string]Screen
	transitions []Transition
	current     string
	typed       map[int]string // index of focused editable -> typed text
	actions     []schemas.AgentAction
}

var _ schemas.DeviceAutomator = (*Device)(nil)

// New builds a scripted device starting on the named screen.
func New(start string, screens []Screen, transitions []Transition) *Device {
	m := make(map[string]Screen, len(screens))
	for _, s := range screens {
		m[s.Name] = s
	}
	return &Device{
		screens:     m,
		transitions: transitions,
		current:     start,
		typed:       make(map[int]string),
	}
}

// Current returns the name of the screen the device is on.
func (d *Device) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Actions returns every action executed so far, in order.
func (d *Device) Actions() []schemas.AgentAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]schemas.AgentAction, len(d.actions))
	copy(out, d.actions)
	return out
}

// Snapshot returns the current screen's observation. Unknown screens yield
// (nil, nil), modelling a device mid-transition.
func (d *Device) Snapshot(_ context.Context) (*schemas.ScreenSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	scr, ok := d.screens[d.current]
	if !ok {
		return nil, nil
	}
	snap := scr.Snapshot()
	// Reflect typed text into focused editables so re-observation sees it.
	for i := range snap.Nodes {
		if text, ok := d.typed[i]; ok && snap.Nodes[i].Editable {
			snap.Nodes[i].Text = text
		}
	}
	return snap, nil
}

func (d *Device) apply(kind schemas.ActionKind, param string) (string, bool) {
	for _, t := range d.transitions {
		if t.From != d.current || t.Kind != kind {
			continue
		}
		if t.Param != "" && !strings.EqualFold(t.Param, param) {
			continue
		}
		return t.To, true
	}
	return d.current, false
}

func (d *Device) execute(kind schemas.ActionKind, params map[string]string, param string) schemas.ActionOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, schemas.AgentAction{Kind: kind, Params: params})
	if next, moved := d.apply(kind, param); moved {
		d.current = next
		d.typed = make(map[int]string)
		return schemas.ActionOutcome{Success: true, Message: "moved to " + next}
	}
	return schemas.ActionOutcome{Success: true, Message: "no screen change"}
}

func (d *Device) ClickByText(_ context.Context, text string) schemas.ActionOutcome {
	d.mu.Lock()
	scr := d.screens[d.current]
	found := false
	for _, n := range scr.Snapshot().Nodes {
		if strings.EqualFold(n.Text, text) {
			found = true
			break
		}
	}
	d.mu.Unlock()
	if !found {
		d.mu.Lock()
		d.actions = append(d.actions, schemas.AgentAction{Kind: schemas.ActionClickByText, Params: map[string]string{"text": text}})
		d.mu.Unlock()
		return schemas.ActionOutcome{Success: false, Message: "no node with text " + text}
	}
	return d.execute(schemas.ActionClickByText, map[string]string{"text": text}, text)
}

func (d *Device) ClickByLabel(_ context.Context, label string) schemas.ActionOutcome {
	return d.execute(schemas.ActionClickByLabel, map[string]string{"label": label}, label)
}

func (d *Device) ClickByIndex(_ context.Context, index int) schemas.ActionOutcome {
	idx := strconv.Itoa(index)
	return d.execute(schemas.ActionClickByIndex, map[string]string{"index": idx}, idx)
}

func (d *Device) InputText(_ context.Context, text string) schemas.ActionOutcome {
	d.mu.Lock()
	if scr, ok := d.screens[d.current]; ok {
		if fe, found := scr.Snapshot().FocusedEditable(); found {
			d.typed[fe.Index] = text
		}
	}
	d.actions = append(d.actions, schemas.AgentAction{Kind: schemas.ActionInputText, Params: map[string]string{"text": text}})
	d.mu.Unlock()
	return schemas.ActionOutcome{Success: true, Message: "typed text"}
}

func (d *Device) PressEnter(_ context.Context) schemas.ActionOutcome {
	return d.execute(schemas.ActionPressEnter, nil, "")
}

func (d *Device) Back(_ context.Context) schemas.ActionOutcome {
	return d.execute(schemas.ActionBack, nil, "")
}

func (d *Device) ScrollUp(_ context.Context) schemas.ActionOutcome {
	return d.execute(schemas.ActionScroll, map[string]string{"direction": "up"}, "up")
}

func (d *Device) ScrollDown(_ context.Context) schemas.ActionOutcome {
	return d.execute(schemas.ActionScroll, map[string]string{"direction": "down"}, "down")
}

func (d *Device) OpenApp(_ context.Context, appID string) schemas.ActionOutcome {
	return d.execute(schemas.ActionOpenApp, map[string]string{"app": appID}, appID)
}

// Screenshot always returns nil; the scripted device has no pixels.
func (d *Device) Screenshot(_ context.Context) []byte { return nil }
