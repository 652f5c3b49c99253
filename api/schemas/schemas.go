// Package schemas holds the shared data model exchanged between the agent
// loop, the planners, and the device automation layer. Keeping these types
// dependency-free lets every internal package import them without cycles.
package schemas

import "fmt"

// MaxSnapshotNodes caps the number of UI nodes carried in a single snapshot.
// The tree pre-order traversal is truncated at this bound after decoration
// filtering, so the planner prompt stays a bounded size.
const MaxSnapshotNodes = 150

// Rect is a screen-space bounding box in device pixels.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// CenterX returns the horizontal midpoint of the rectangle.
func (r Rect) CenterX() int { return (r.Left + r.Right) / 2 }

// CenterY returns the vertical midpoint of the rectangle.
func (r Rect) CenterY() int { return (r.Top + r.Bottom) / 2 }

// UiNode is one interactive or labelled element of the current screen.
type UiNode struct {
	Index           int    `json:"index"` // Position in the capped sequence.
	Text            string `json:"text,omitempty"`
	AccessibleLabel string `json:"accessible_label,omitempty"`
	ElementKind     string `json:"element_kind,omitempty"`
	Clickable       bool   `json:"clickable"`
	Editable        bool   `json:"editable"`
	Scrollable      bool   `json:"scrollable"`
	Focused         bool   `json:"focused"`
	Bounds          Rect   `json:"bounds"`
}

// Interesting reports whether the node carries enough signal to be worth
// including in a snapshot. Pure decoration is filtered out before the cap.
func (n UiNode) Interesting() bool {
	return n.Text != "" || n.AccessibleLabel != "" || n.Clickable || n.Editable || n.Scrollable
}

// ScreenSnapshot is a bounded, serializable description of "what is on
// screen now". Nodes preserve pre-order traversal order, truncated at
// MaxSnapshotNodes. TotalNodeCount counts the nodes before truncation, so
// TotalNodeCount >= len(Nodes) always holds.
type ScreenSnapshot struct {
	ApplicationID  string   `json:"application_id"`
	Nodes          []UiNode `json:"nodes"`
	TotalNodeCount int      `json:"total_node_count"`
}

// Compact renders the snapshot as the line-oriented text the planners
// consume. One line per node keeps the format trivially diffable in logs.
func (s *ScreenSnapshot) Compact() string {
	out := fmt.Sprintf("app=%s nodes=%d/%d\n", s.ApplicationID, len(s.Nodes), s.TotalNodeCount)
	for _, n := range s.Nodes {
		flags := ""
		if n.Clickable {
			flags += "c"
		}
		if n.Editable {
			flags += "e"
		}
		if n.Scrollable {
			flags += "s"
		}
		if n.Focused {
			flags += "f"
		}
		out += fmt.Sprintf("[%d] kind=%s text=%q label=%q flags=%s\n",
			n.Index, n.ElementKind, n.Text, n.AccessibleLabel, flags)
	}
	return out
}

// FirstClickableText returns the text of the first clickable node, or "".
func (s *ScreenSnapshot) FirstClickableText() string {
	for _, n := range s.Nodes {
		if n.Clickable && n.Text != "" {
			return n.Text
		}
	}
	return ""
}

// FocusedEditable returns the first focused editable node, if any.
func (s *ScreenSnapshot) FocusedEditable() (UiNode, bool) {
	for _, n := range s.Nodes {
		if n.Editable && n.Focused {
			return n, true
		}
	}
	return UiNode{}, false
}

// ActionKind enumerates the closed vocabulary of actions a planner may emit.
type ActionKind string

const (
	ActionOpenApp      ActionKind = "open_app"       // Launch an application fresh. Params: app.
	ActionClickByText  ActionKind = "click_by_text"  // Click the node whose text matches. Params: text.
	ActionClickByLabel ActionKind = "click_by_label" // Click by accessibility label. Params: label.
	ActionClickByIndex ActionKind = "click_by_index" // Click the node at a snapshot index. Params: index.
	ActionInputText    ActionKind = "input_text"     // Type into the focused field. Params: text.
	ActionPressEnter   ActionKind = "press_enter"    // Press the enter/submit key.
	ActionScroll       ActionKind = "scroll"         // Scroll the screen. Params: direction (up|down).
	ActionBack         ActionKind = "back"           // Navigate back.
	ActionWait         ActionKind = "wait"           // Do nothing for one settle interval.
	ActionComplete     ActionKind = "complete_task"  // Declare the goal achieved.
)

// ValidActionKinds is the closed vocabulary used to validate planner output.
// Anything outside this set is treated as a parse failure, not an error.
var ValidActionKinds = map[ActionKind]bool{
	ActionOpenApp:      true,
	ActionClickByText:  true,
	ActionClickByLabel: true,
	ActionClickByIndex: true,
	ActionInputText:    true,
	ActionPressEnter:   true,
	ActionScroll:       true,
	ActionBack:         true,
	ActionWait:         true,
	ActionComplete:     true,
}

// AgentAction is the single next step chosen by a planner. Produced fresh
// each iteration and consumed immediately; never retained across iterations.
type AgentAction struct {
	Kind      ActionKind        `json:"action"`
	Params    map[string]string `json:"params,omitempty"`
	Reasoning string            `json:"reasoning,omitempty"`
}

// Param returns a parameter value or "" when absent.
func (a AgentAction) Param(key string) string {
	if a.Params == nil {
		return ""
	}
	return a.Params[key]
}

// ActionOutcome reports the result of executing one action on the device.
type ActionOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// AgentResult is the terminal value of one loop invocation.
type AgentResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Steps   int    `json:"steps"`
}

// TestStep records one executed action in QA mode.
type TestStep struct {
	StepNumber     int               `json:"step_number"`
	Action         ActionKind        `json:"action"`
	Params         map[string]string `json:"params,omitempty"`
	Reasoning      string            `json:"reasoning,omitempty"`
	OutcomeMessage string            `json:"outcome_message,omitempty"`
	Passed         bool              `json:"passed"`
}

// TestRun is the QA artifact emitted once, at loop termination.
type TestRun struct {
	RunID         string     `json:"run_id"`
	Goal          string     `json:"goal"`
	TargetApp     string     `json:"target_app,omitempty"`
	Timestamp     string     `json:"timestamp"`
	Steps         []TestStep `json:"steps"`
	PassedSteps   int        `json:"passed_steps"`
	FailedSteps   int        `json:"failed_steps"`
	OverallPassed bool       `json:"overall_passed"`
}

// GenerationOptions tune a single LLM generation call.
type GenerationOptions struct {
	ForceJSONFormat bool
	Temperature     float64
}

// GenerationRequest is the provider-neutral input to an LLM client.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	// ImagePNG optionally carries a screenshot for vision-capable providers.
	ImagePNG []byte
	Options  GenerationOptions
}
