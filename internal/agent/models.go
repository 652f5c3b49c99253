// Package agent implements the autonomous control loop: observe the screen,
// plan one action, execute it, settle, repeat until the goal is reached or
// the step budget runs out.
package agent

import (
	"regexp"
	"sort"
	"strings"
)

// appHintPrefix is the structured goal prefix naming an explicit target
// application, e.g. "app:com.android.chrome open the news site".
const appHintPrefix = "app:"

// qaVocabRegex matches the test-intent vocabulary that switches the loop
// into QA mode.
var qaVocabRegex = regexp.MustCompile(`(?i)\b(test|verify|check|assert)\b`)

// Goal is the parsed form of the user's raw task text. Immutable once the
// loop starts; only the Cleaned copy ever reaches a planner.
type Goal struct {
	Raw string
	// Cleaned is the hint-stripped goal text (sanitization is applied on
	// top by the controller).
	Cleaned string
	// TargetApp is the explicit application hint, or "".
	TargetApp string
	// QAMode is set when the text matches test-intent vocabulary or an
	// explicit target hint is present.
	QAMode bool
}

// ParseGoal extracts the optional app hint and the QA-mode flag.
func ParseGoal(raw string) Goal {
	text := strings.TrimSpace(raw)
	goal := Goal{Raw: raw, Cleaned: text}

	if strings.HasPrefix(strings.ToLower(text), appHintPrefix) {
		rest := text[len(appHintPrefix):]
		fields := strings.Fields(rest)
		if len(fields) > 0 && fields[0] != "" {
			goal.TargetApp = fields[0]
			goal.Cleaned = strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
		}
	}

	goal.QAMode = goal.TargetApp != "" || qaVocabRegex.MatchString(goal.Cleaned)
	return goal
}

// resolveKnownApp scans goal words against the keyword registry in sorted
// keyword order, so pre-flight launch decisions are deterministic.
func resolveKnownApp(knownApps map[string]string, goal string) string {
	keywords := make([]string, 0, len(knownApps))
	for k := range knownApps {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	words := strings.FieldsFunc(strings.ToLower(goal), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	for _, keyword := range keywords {
		for _, w := range words {
			if w == keyword {
				return knownApps[keyword]
			}
		}
	}
	return ""
}
