package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
	"github.com/droidmind/droidpilot/internal/agent"
	"github.com/droidmind/droidpilot/internal/config"
	"github.com/droidmind/droidpilot/internal/device/adb"
	"github.com/droidmind/droidpilot/internal/device/scripted"
	"github.com/droidmind/droidpilot/internal/llmclient"
	"github.com/droidmind/droidpilot/internal/observability"
	"github.com/droidmind/droidpilot/internal/planner"
	"github.com/droidmind/droidpilot/internal/reporting"
	"github.com/droidmind/droidpilot/internal/safety"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var (
		maxSteps     int
		settle       string
		qaMode       bool
		dryRun       bool
		yes          bool
		primaryKey   string
		secondaryKey string
		reportDir    string
		serial       string
	)

	runCmd := &cobra.Command{
		Use:   "run \"<goal>\"",
		Short: "Drives the connected device toward the given natural-language goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Context from main is signal-aware; Ctrl+C cancels the run.
			ctx := cmd.Context()
			logger := observability.GetLogger()
			goal := args[0]

			applyRunOverrides(cfg, cmd, maxSteps, settle, qaMode, primaryKey, secondaryKey, reportDir, serial)

			device := buildDevice(cfg, dryRun, logger)
			decider := buildDecider(cfg, logger)
			gate := safety.NewGate(cfg.Safety, logger)

			reporter, err := reporting.NewFileReporter(cfg.Report.Dir, logger)
			if err != nil {
				return err
			}

			var confirm agent.ConfirmFunc
			if yes {
				confirm = func(context.Context, schemas.AgentAction) bool { return true }
			} else {
				confirm = promptConfirm
			}

			controller := agent.New(cfg.Agent, cfg.Safety.ConfirmTimeout,
				device, decider, gate, nil, confirm, reporter, logger)

			result, err := controller.Run(ctx, goal)
			if err != nil {
				return err
			}

			fmt.Printf("\n%s after %d steps: %s\n", verdict(result.Success), result.Steps, result.Message)
			if !result.Success {
				return fmt.Errorf("goal not achieved")
			}
			return nil
		},
	}

	runCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Step budget for the run. (Overrides config/env)")
	runCmd.Flags().StringVar(&settle, "settle", "", "Settle delay between actions, e.g. 2s. (Overrides config/env)")
	runCmd.Flags().BoolVar(&qaMode, "qa", false, "Record the run as a QA test regardless of goal phrasing")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run against a scripted in-memory device instead of adb")
	runCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Approve high-risk actions without prompting")
	runCmd.Flags().StringVar(&primaryKey, "primary-key", "", "API key for the primary planning provider")
	runCmd.Flags().StringVar(&secondaryKey, "secondary-key", "", "API key for the secondary planning provider")
	runCmd.Flags().StringVar(&reportDir, "report-dir", "", "Directory for QA report artifacts. (Overrides config/env)")
	runCmd.Flags().StringVarP(&serial, "serial", "s", "", "Device serial passed to adb -s")

	return runCmd
}

// applyRunOverrides layers changed flags over the loaded configuration.
func applyRunOverrides(cfg *config.Config, cmd *cobra.Command, maxSteps int, settle string, qaMode bool, primaryKey, secondaryKey, reportDir, serial string) {
	if cmd.Flags().Changed("max-steps") && maxSteps > 0 {
		cfg.Agent.MaxSteps = maxSteps
	}
	if cmd.Flags().Changed("settle") {
		if d, err := time.ParseDuration(settle); err == nil {
			cfg.Agent.SettleDelay = d
		}
	}
	if qaMode {
		cfg.Agent.ForceQA = true
	}
	if primaryKey != "" {
		cfg.Planner.Primary.APIKey = primaryKey
	}
	if secondaryKey != "" {
		cfg.Planner.Secondary.APIKey = secondaryKey
	}
	if reportDir != "" {
		cfg.Report.Dir = reportDir
	}
	if serial != "" {
		cfg.Device.Serial = serial
	}
}

// buildDevice picks the automation provider: adb for real devices, the
// scripted device for dry runs.
func buildDevice(cfg *config.Config, dryRun bool, logger *zap.Logger) schemas.DeviceAutomator {
	if dryRun {
		logger.Info("Dry run: using the scripted in-memory device")
		return dryRunDevice(cfg)
	}
	return adb.New(cfg.Device, logger)
}

// dryRunDevice models a tiny home-screen-and-app world so the full loop can
// be exercised with no hardware attached.
func dryRunDevice(cfg *config.Config) *scripted.Device {
	screens := []scripted.Screen{
		{
			Name:          "home",
			ApplicationID: "com.android.launcher",
			Nodes: []schemas.UiNode{
				{Text: "Search apps", Editable: true, Clickable: true},
			},
		},
	}
	var transitions []scripted.Transition
	seen := map[string]bool{}
	for _, appID := range cfg.Agent.KnownApps {
		if seen[appID] {
			continue
		}
		seen[appID] = true
		screens = append(screens, scripted.Screen{
			Name:          appID,
			ApplicationID: appID,
			Nodes: []schemas.UiNode{
				{Text: "Search", AccessibleLabel: "Search", Clickable: true, Editable: true, Focused: true},
				{Text: "Item one", Clickable: true},
				{Text: "Item two", Clickable: true},
			},
		})
		transitions = append(transitions,
			scripted.Transition{From: "home", Kind: schemas.ActionOpenApp, Param: appID, To: appID},
			scripted.Transition{From: appID, Kind: schemas.ActionBack, To: "home"},
			scripted.Transition{From: appID, Kind: schemas.ActionOpenApp, Param: appID, To: appID},
		)
	}
	return scripted.New("home", screens, transitions)
}

// buildDecider assembles the planning chain. Remote links are added only
// when a key is configured; the heuristic planner always terminates the
// chain.
func buildDecider(cfg *config.Config, logger *zap.Logger) agent.Decider {
	var links []planner.Planner

	if cfg.Planner.Primary.APIKey != "" {
		client, err := llmclient.NewClient(cfg.Planner.Primary, logger)
		if err != nil {
			logger.Warn("Primary planner unavailable", zap.Error(err))
		} else {
			links = append(links, planner.NewRemotePlanner("primary", client, cfg.Planner.Temperature, logger))
		}
	}
	if cfg.Planner.Secondary.APIKey != "" {
		client, err := llmclient.NewClient(cfg.Planner.Secondary, logger)
		if err != nil {
			logger.Warn("Secondary planner unavailable", zap.Error(err))
		} else {
			// The secondary provider contributes two links: a vision attempt
			// when a screenshot exists, then a text-only retry.
			if client.SupportsVision() {
				links = append(links, planner.NewVisionPlanner("secondary-vision", client, cfg.Planner.Temperature, logger))
			}
			links = append(links, planner.NewRemotePlanner("secondary-text", client, cfg.Planner.Temperature, logger))
		}
	}
	links = append(links, planner.NewHeuristicPlanner(cfg.Agent.KnownApps, logger))

	if len(links) == 1 {
		logger.Info("No planning credentials configured; running on the heuristic planner only")
	}
	return planner.NewChain(logger, cfg.Planner.DecisionTimeout, links...)
}

// promptConfirm asks on stdin whether a high-risk action may proceed.
func promptConfirm(ctx context.Context, action schemas.AgentAction) bool {
	fmt.Printf("\nHigh-risk action: %s %v\n  %s\nProceed? [y/N]: ",
		action.Kind, action.Params, action.Reasoning)

	answerCh := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		answerCh <- strings.TrimSpace(strings.ToLower(line))
	}()

	select {
	case answer := <-answerCh:
		return answer == "y" || answer == "yes"
	case <-ctx.Done():
		fmt.Println("(no answer, denying)")
		return false
	}
}

func verdict(success bool) string {
	if success {
		return "SUCCESS"
	}
	return "FAILED"
}
