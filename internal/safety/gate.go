// Package safety classifies goals and actions before they reach the planner
// or the device. The classifiers are deliberately conservative: string
// containment and fixed patterns, no semantic understanding.
package safety

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
	"github.com/droidmind/droidpilot/internal/config"
)

// injectionPatterns match known prompt-override phrasings. A positive match
// aborts the run before any planner sees the goal.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+|the\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+|the\s+)?(previous|prior|above)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all)\s+(you|above)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)\s`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?(a\s+|an\s+)?(different|new)\s`),
	regexp.MustCompile(`(?i)(system|developer)\s*(prompt|message)\s*:`),
	regexp.MustCompile(`(?i)new\s+instructions\s*:`),
	regexp.MustCompile(`<\|[a-z_]+\|>`),
	regexp.MustCompile(`(?i)\[/?(inst|sys)\]`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(system\s+)?prompt`),
}

// delimiterStrip removes model delimiter tokens and code fences before the
// goal is used anywhere.
var delimiterStrip = regexp.MustCompile("(?i)(```+|<\\|[a-z_]*\\|>|\\[/?(INST|SYS)\\])")

// Gate is the safety classifier shared by the loop controller.
type Gate struct {
	cfg    config.SafetyConfig
	logger *zap.Logger
}

// NewGate builds a Gate from configuration.
func NewGate(cfg config.SafetyConfig, logger *zap.Logger) *Gate {
	return &Gate{cfg: cfg, logger: logger.Named("safety")}
}

// DetectInjection reports whether the raw goal matches a known
// prompt-override pattern.
func (g *Gate) DetectInjection(text string) bool {
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(text) {
			g.logger.Warn("Prompt injection pattern detected in goal", zap.String("pattern", pattern.String()))
			return true
		}
	}
	return false
}

// Sanitize strips delimiter-like substrings and truncates the goal to the
// configured maximum length.
func (g *Gate) Sanitize(text string) string {
	cleaned := delimiterStrip.ReplaceAllString(text, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	maxLen := g.cfg.MaxGoalLength
	if maxLen <= 0 {
		maxLen = 500
	}
	runes := []rune(cleaned)
	if len(runes) > maxLen {
		cleaned = string(runes[:maxLen])
	}
	return cleaned
}

// IsHighRisk reports whether an action's reasoning or parameters contain a
// configured high-risk keyword. Known to over-block benign uses of words
// like "send"; execution is gated on explicit confirmation, not refused.
func (g *Gate) IsHighRisk(action schemas.AgentAction) bool {
	var sb strings.Builder
	sb.WriteString(string(action.Kind))
	sb.WriteByte(' ')
	sb.WriteString(action.Reasoning)
	for k, v := range action.Params {
		sb.WriteByte(' ')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v)
	}
	haystack := strings.ToLower(sb.String())

	for _, keyword := range g.cfg.HighRiskKeywords {
		if strings.Contains(haystack, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// ValidateAction reports whether the action targets a sensitive application
// category (banking, wallets, authenticators). Such actions go through the
// same confirmation path as high-risk keywords.
func (g *Gate) ValidateAction(action schemas.AgentAction) bool {
	if action.Kind != schemas.ActionOpenApp {
		return true
	}
	target := strings.ToLower(action.Param("app"))
	for _, category := range g.cfg.SensitiveApps {
		if category != "" && strings.Contains(target, strings.ToLower(category)) {
			g.logger.Warn("Action targets a sensitive application category",
				zap.String("app", target), zap.String("category", category))
			return false
		}
	}
	return true
}
