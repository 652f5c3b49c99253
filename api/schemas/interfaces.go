package schemas

import "context"

// DeviceAutomator is the external device automation provider boundary. All
// calls are synchronous; implementations report failure through the outcome
// (or the error for transport-level faults) and must never panic.
type DeviceAutomator interface {
	// Snapshot observes the current screen. A nil snapshot with nil error
	// means no UI is observable right now (e.g. the device is mid-transition).
	Snapshot(ctx context.Context) (*ScreenSnapshot, error)

	ClickByText(ctx context.Context, text string) ActionOutcome
	ClickByLabel(ctx context.Context, label string) ActionOutcome
	ClickByIndex(ctx context.Context, index int) ActionOutcome
	InputText(ctx context.Context, text string) ActionOutcome
	PressEnter(ctx context.Context) ActionOutcome
	Back(ctx context.Context) ActionOutcome
	ScrollUp(ctx context.Context) ActionOutcome
	ScrollDown(ctx context.Context) ActionOutcome

	// OpenApp launches the application with clear-and-relaunch semantics:
	// any previous task state is discarded before the fresh start.
	OpenApp(ctx context.Context, appID string) ActionOutcome

	// Screenshot returns a PNG of the current screen, or nil when the
	// provider cannot capture one. Used only for vision-capable planners.
	Screenshot(ctx context.Context) []byte
}

// LLMClient is one remote text-generation provider.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// SupportsVision reports whether ImagePNG in a request is honored.
	SupportsVision() bool
}
