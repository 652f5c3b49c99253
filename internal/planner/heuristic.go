package planner

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
)

// HeuristicPlanner is the deterministic rule-based fallback. It never calls
// the network, always terminates in O(snapshot size), and is the sole
// planner when no remote credentials are configured. Same (goal, snapshot,
// step) input always yields the same action.
type HeuristicPlanner struct {
	logger *zap.Logger
	// knownApps maps goal keywords to application IDs. Lookups iterate the
	// keywords in sorted order so matching stays deterministic.
	knownApps   map[string]string
	appKeywords []string
}

var _ Planner = (*HeuristicPlanner)(nil)

// NewHeuristicPlanner builds the fallback planner over a keyword registry.
func NewHeuristicPlanner(knownApps map[string]string, logger *zap.Logger) *HeuristicPlanner {
	keywords := make([]string, 0, len(knownApps))
	for k := range knownApps {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)
	return &HeuristicPlanner{
		logger:      logger.Named("planner.heuristic"),
		knownApps:   knownApps,
		appKeywords: keywords,
	}
}

// Name identifies the chain link in logs.
func (p *HeuristicPlanner) Name() string { return "heuristic" }

// dismissTexts are interstitial controls worth clicking before anything
// else, in priority order.
var dismissTexts = []string{"Skip Ad", "Skip ad", "Skip Ads", "Skip", "Not now", "No thanks"}

var quotedRegex = regexp.MustCompile(`['"]([^'"]+)['"]`)

// queryVerbs introduce the free-text payload of a goal ("search for cats").
var queryVerbs = []string{"search for ", "search ", "find ", "look up ", "type ", "watch ", "play ", "saying ", "write "}

// actionVerbs mark goals that need more than just opening an app.
var actionVerbs = []string{"search", "find", "type", "send", "watch", "play", "compose", "write", "message", "look up", "scroll", "click", "tap"}

// NextAction walks a fixed decision table keyed on the current application,
// the step number, goal keywords, and coarse screen signals.
func (p *HeuristicPlanner) NextAction(_ context.Context, req Request) (schemas.AgentAction, error) {
	snap := req.Snapshot
	goal := strings.ToLower(req.Goal)
	query := extractQuery(req.Goal)

	// 1. Dismiss interstitials (ads, consent sheets) before anything else.
	for _, dismiss := range dismissTexts {
		for _, n := range snap.Nodes {
			if n.Clickable && (n.Text == dismiss || n.AccessibleLabel == dismiss) {
				return action(schemas.ActionClickByText, map[string]string{"text": dismiss},
					"dismissing interstitial control"), nil
			}
		}
	}

	// 2. Not in the target application yet: launch it.
	target := req.TargetApp
	if target == "" {
		target = p.resolveKnownApp(goal)
	}
	if target != "" && snap.ApplicationID != target {
		return action(schemas.ActionOpenApp, map[string]string{"app": target},
			"goal names an application that is not in the foreground"), nil
	}

	// 3. A focused editable field drives the typing flow.
	if focused, ok := snap.FocusedEditable(); ok && query != "" {
		if strings.EqualFold(strings.TrimSpace(focused.Text), query) {
			return action(schemas.ActionPressEnter, nil, "query already typed, submitting"), nil
		}
		return action(schemas.ActionInputText, map[string]string{"text": query},
			"typing the goal query into the focused field"), nil
	}

	// 4. An editable field exists but is not focused: focus it first.
	if query != "" {
		for _, n := range snap.Nodes {
			if n.Editable {
				return action(schemas.ActionClickByIndex, map[string]string{"index": strconv.Itoa(n.Index)},
					"focusing the input field"), nil
			}
		}
	}

	// 5. A search goal with no field on screen: reach for the search control.
	if strings.Contains(goal, "search") || strings.Contains(goal, "find") {
		for _, n := range snap.Nodes {
			if n.Clickable && (containsFold(n.Text, "search") || containsFold(n.AccessibleLabel, "search")) {
				if n.Text != "" {
					return action(schemas.ActionClickByText, map[string]string{"text": n.Text},
						"opening the search control"), nil
				}
				return action(schemas.ActionClickByLabel, map[string]string{"label": n.AccessibleLabel},
					"opening the search control"), nil
			}
		}
	}

	// 6. A result matching the query is visible: select it.
	if query != "" {
		for _, n := range snap.Nodes {
			if n.Clickable && !n.Editable && containsFold(n.Text, query) {
				return action(schemas.ActionClickByText, map[string]string{"text": n.Text},
					"selecting the result matching the query"), nil
			}
		}
	}

	// 7. Pure launch goals are done once the app is in the foreground.
	if target != "" && snap.ApplicationID == target && !hasActionVerb(goal) && query == "" {
		return action(schemas.ActionComplete, nil, "target application is in the foreground"), nil
	}

	// 8. Reveal new candidates rather than repeating ourselves.
	for _, n := range snap.Nodes {
		if n.Scrollable {
			return action(schemas.ActionScroll, map[string]string{"direction": "down"},
				"scrolling to reveal more of the screen"), nil
		}
	}

	return action(schemas.ActionWait, nil, "no applicable rule, waiting for the UI to change"), nil
}

// resolveKnownApp scans goal words against the keyword registry, first
// (sorted) keyword match wins.
func (p *HeuristicPlanner) resolveKnownApp(goal string) string {
	for _, keyword := range p.appKeywords {
		if containsWord(goal, keyword) {
			return p.knownApps[keyword]
		}
	}
	return ""
}

// extractQuery pulls the free-text payload out of a goal: a quoted span
// first, then the text following a query verb.
func extractQuery(goal string) string {
	if m := quotedRegex.FindStringSubmatch(goal); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	lower := strings.ToLower(goal)
	for _, verb := range queryVerbs {
		if idx := strings.Index(lower, verb); idx != -1 {
			rest := strings.TrimSpace(goal[idx+len(verb):])
			rest = strings.TrimRight(rest, ".!?")
			// Launch-style goals ("find the mail app") carry no query.
			if rest == "" || strings.HasPrefix(strings.ToLower(rest), "the ") {
				continue
			}
			return rest
		}
	}
	return ""
}

func hasActionVerb(goal string) bool {
	for _, verb := range actionVerbs {
		if strings.Contains(goal, verb) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func containsWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	}) {
		if strings.EqualFold(field, word) {
			return true
		}
	}
	return false
}

func action(kind schemas.ActionKind, params map[string]string, reasoning string) schemas.AgentAction {
	return schemas.AgentAction{Kind: kind, Params: params, Reasoning: reasoning}
}
