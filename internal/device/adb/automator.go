// Package adb implements the device automation provider over the Android
// Debug Bridge: screens are observed through uiautomator XML dumps and
// actions are dispatched as shell input commands.
package adb

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
	"github.com/droidmind/droidpilot/internal/config"
)

// dumpPath is where uiautomator writes the accessibility snapshot on the
// device before it is streamed back.
const dumpPath = "/sdcard/droidpilot-ui.xml"

var (
	boundsRegex     = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)
	foregroundRegex = regexp.MustCompile(`(?m)topResumedActivity.*?\s([a-zA-Z0-9_.]+)/`)
)

// Automator drives one device (or emulator) through the adb binary. All
// methods are synchronous and report failure through the outcome; they
// never panic.
type Automator struct {
	adbPath string
	serial  string
	timeout time.Duration
	logger  *zap.Logger
}

var _ schemas.DeviceAutomator = (*Automator)(nil)

// New builds an Automator from device configuration.
func New(cfg config.DeviceConfig, logger *zap.Logger) *Automator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Automator{
		adbPath: cfg.ADBPath,
		serial:  cfg.Serial,
		timeout: timeout,
		logger:  logger.Named("device.adb"),
	}
}

func (a *Automator) run(ctx context.Context, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	full := args
	if a.serial != "" {
		full = append([]string{"-s", a.serial}, args...)
	}
	out, err := exec.CommandContext(cmdCtx, a.adbPath, full...).Output()
	if err != nil {
		return "", fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (a *Automator) shell(ctx context.Context, args ...string) (string, error) {
	return a.run(ctx, append([]string{"shell"}, args...)...)
}

// Snapshot dumps the accessibility tree and converts it into the bounded
// node sequence. Returns (nil, nil) when the device has no observable UI
// yet (uiautomator refuses to dump during transitions).
func (a *Automator) Snapshot(ctx context.Context) (*schemas.ScreenSnapshot, error) {
	if _, err := a.shell(ctx, "uiautomator", "dump", dumpPath); err != nil {
		a.logger.Debug("uiautomator dump failed", zap.Error(err))
		return nil, nil
	}
	xml, err := a.shell(ctx, "cat", dumpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read UI dump: %w", err)
	}

	appID := a.foregroundApp(ctx)
	snap, err := ParseDump(xml, appID)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ParseDump converts a uiautomator XML document into a capped snapshot.
// Decoration nodes are filtered before the cap is applied; document order
// (pre-order traversal) is preserved.
func ParseDump(xml, appID string) (*schemas.ScreenSnapshot, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("failed to parse UI dump XML: %w", err)
	}

	snap := &schemas.ScreenSnapshot{ApplicationID: appID}
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if el.Tag == "node" {
			node := schemas.UiNode{
				Text:            el.SelectAttrValue("text", ""),
				AccessibleLabel: el.SelectAttrValue("content-desc", ""),
				ElementKind:     shortClass(el.SelectAttrValue("class", "")),
				Clickable:       el.SelectAttrValue("clickable", "false") == "true",
				Editable:        strings.Contains(el.SelectAttrValue("class", ""), "EditText"),
				Scrollable:      el.SelectAttrValue("scrollable", "false") == "true",
				Focused:         el.SelectAttrValue("focused", "false") == "true",
				Bounds:          parseBounds(el.SelectAttrValue("bounds", "")),
			}
			if node.Interesting() {
				snap.TotalNodeCount++
				if len(snap.Nodes) < schemas.MaxSnapshotNodes {
					node.Index = len(snap.Nodes)
					snap.Nodes = append(snap.Nodes, node)
				}
			}
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return snap, nil
}

func shortClass(class string) string {
	if idx := strings.LastIndex(class, "."); idx != -1 {
		return class[idx+1:]
	}
	return class
}

func parseBounds(raw string) schemas.Rect {
	m := boundsRegex.FindStringSubmatch(raw)
	if len(m) != 5 {
		return schemas.Rect{}
	}
	left, _ := strconv.Atoi(m[1])
	top, _ := strconv.Atoi(m[2])
	right, _ := strconv.Atoi(m[3])
	bottom, _ := strconv.Atoi(m[4])
	return schemas.Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

func (a *Automator) foregroundApp(ctx context.Context) string {
	out, err := a.shell(ctx, "dumpsys", "activity", "activities")
	if err != nil {
		return ""
	}
	if m := foregroundRegex.FindStringSubmatch(out); len(m) > 1 {
		return m[1]
	}
	return ""
}

func (a *Automator) tap(ctx context.Context, bounds schemas.Rect, what string) schemas.ActionOutcome {
	_, err := a.shell(ctx, "input", "tap",
		strconv.Itoa(bounds.CenterX()), strconv.Itoa(bounds.CenterY()))
	if err != nil {
		return schemas.ActionOutcome{Success: false, Message: fmt.Sprintf("tap on %s failed: %v", what, err)}
	}
	return schemas.ActionOutcome{Success: true, Message: "tapped " + what}
}

func (a *Automator) findAndTap(ctx context.Context, what string, match func(schemas.UiNode) bool) schemas.ActionOutcome {
	snap, err := a.Snapshot(ctx)
	if err != nil || snap == nil {
		return schemas.ActionOutcome{Success: false, Message: "could not observe screen to resolve " + what}
	}
	for _, n := range snap.Nodes {
		if match(n) {
			return a.tap(ctx, n.Bounds, what)
		}
	}
	return schemas.ActionOutcome{Success: false, Message: "no node matching " + what}
}

// ClickByText taps the first node whose visible text matches.
func (a *Automator) ClickByText(ctx context.Context, text string) schemas.ActionOutcome {
	return a.findAndTap(ctx, fmt.Sprintf("text %q", text), func(n schemas.UiNode) bool {
		return strings.EqualFold(n.Text, text)
	})
}

// ClickByLabel taps the first node whose accessibility label matches.
func (a *Automator) ClickByLabel(ctx context.Context, label string) schemas.ActionOutcome {
	return a.findAndTap(ctx, fmt.Sprintf("label %q", label), func(n schemas.UiNode) bool {
		return strings.EqualFold(n.AccessibleLabel, label)
	})
}

// ClickByIndex taps the node at the given snapshot index.
func (a *Automator) ClickByIndex(ctx context.Context, index int) schemas.ActionOutcome {
	return a.findAndTap(ctx, fmt.Sprintf("index %d", index), func(n schemas.UiNode) bool {
		return n.Index == index
	})
}

// inputEscaper rewrites text for `adb shell input text`, which treats
// spaces and shell metacharacters specially.
var inputEscaper = strings.NewReplacer(
	" ", "%s",
	"&", "\\&", "<", "\\<", ">", "\\>", "(", "\\(", ")", "\\)",
	"'", "\\'", "\"", "\\\"", ";", "\\;", "|", "\\|", "$", "\\$",
)

// InputText types into the currently focused field.
func (a *Automator) InputText(ctx context.Context, text string) schemas.ActionOutcome {
	if _, err := a.shell(ctx, "input", "text", inputEscaper.Replace(text)); err != nil {
		return schemas.ActionOutcome{Success: false, Message: fmt.Sprintf("input text failed: %v", err)}
	}
	return schemas.ActionOutcome{Success: true, Message: "typed text"}
}

func (a *Automator) keyevent(ctx context.Context, code string, what string) schemas.ActionOutcome {
	if _, err := a.shell(ctx, "input", "keyevent", code); err != nil {
		return schemas.ActionOutcome{Success: false, Message: fmt.Sprintf("%s failed: %v", what, err)}
	}
	return schemas.ActionOutcome{Success: true, Message: what}
}

// PressEnter presses the enter/submit key.
func (a *Automator) PressEnter(ctx context.Context) schemas.ActionOutcome {
	return a.keyevent(ctx, "66", "pressed enter")
}

// Back presses the system back key.
func (a *Automator) Back(ctx context.Context) schemas.ActionOutcome {
	return a.keyevent(ctx, "4", "pressed back")
}

func (a *Automator) swipe(ctx context.Context, y1, y2 int, what string) schemas.ActionOutcome {
	_, err := a.shell(ctx, "input", "swipe", "540", strconv.Itoa(y1), "540", strconv.Itoa(y2), "300")
	if err != nil {
		return schemas.ActionOutcome{Success: false, Message: fmt.Sprintf("%s failed: %v", what, err)}
	}
	return schemas.ActionOutcome{Success: true, Message: what}
}

// ScrollUp swipes downward so earlier content scrolls into view.
func (a *Automator) ScrollUp(ctx context.Context) schemas.ActionOutcome {
	return a.swipe(ctx, 600, 1400, "scrolled up")
}

// ScrollDown swipes upward so later content scrolls into view.
func (a *Automator) ScrollDown(ctx context.Context) schemas.ActionOutcome {
	return a.swipe(ctx, 1400, 600, "scrolled down")
}

// OpenApp force-stops the application and launches it fresh, so the run
// never inherits stale task state.
func (a *Automator) OpenApp(ctx context.Context, appID string) schemas.ActionOutcome {
	if appID == "" {
		return schemas.ActionOutcome{Success: false, Message: "no application id given"}
	}
	if _, err := a.shell(ctx, "am", "force-stop", appID); err != nil {
		a.logger.Debug("force-stop failed, launching anyway", zap.String("app", appID), zap.Error(err))
	}
	_, err := a.shell(ctx, "monkey", "-p", appID, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return schemas.ActionOutcome{Success: false, Message: fmt.Sprintf("failed to launch %s: %v", appID, err)}
	}
	return schemas.ActionOutcome{Success: true, Message: "launched " + appID}
}

// Screenshot captures a PNG of the current screen, or nil on failure.
func (a *Automator) Screenshot(ctx context.Context) []byte {
	cmdCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	args := []string{"exec-out", "screencap", "-p"}
	if a.serial != "" {
		args = append([]string{"-s", a.serial}, args...)
	}
	out, err := exec.CommandContext(cmdCtx, a.adbPath, args...).Output()
	if err != nil {
		a.logger.Debug("screencap failed", zap.Error(err))
		return nil
	}
	return out
}
