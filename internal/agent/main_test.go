package agent

import (
	"os"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/droidmind/droidpilot/internal/config"
	"github.com/droidmind/droidpilot/internal/observability"
)

// TestMain instantiates the global logger before running the package tests.
func TestMain(m *testing.M) {
	logCfg := config.NewDefault().Logger
	logCfg.Level = "debug"
	logCfg.ServiceName = "test-suite"
	logCfg.Format = "console"

	observability.Initialize(logCfg, zapcore.Lock(os.Stdout))

	exitCode := m.Run()

	observability.Sync()
	observability.ResetForTest()

	os.Exit(exitCode)
}
