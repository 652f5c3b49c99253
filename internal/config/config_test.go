package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, 20, cfg.Agent.MaxSteps)
	assert.Equal(t, 2*time.Second, cfg.Agent.SettleDelay)
	assert.Equal(t, 3, cfg.Agent.StuckThreshold)
	assert.InDelta(t, 0.5, cfg.Agent.QAPassRatio, 1e-9)
	assert.Equal(t, "com.droidmind.droidpilot", cfg.Agent.HostAppID)
	assert.Equal(t, 5, cfg.Agent.MaxObserveFailures)
	assert.Equal(t, "com.google.android.gm", cfg.Agent.KnownApps["mail"])

	assert.Equal(t, ProviderOpenAI, cfg.Planner.Primary.Provider)
	assert.Equal(t, ProviderGemini, cfg.Planner.Secondary.Provider)
	assert.Equal(t, 5*time.Second, cfg.Planner.DecisionTimeout)

	assert.Contains(t, cfg.Safety.HighRiskKeywords, "delete")
	assert.Contains(t, cfg.Safety.SensitiveApps, "bank")
	assert.Equal(t, 60*time.Second, cfg.Safety.ConfirmTimeout)

	assert.Equal(t, "adb", cfg.Device.ADBPath)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  max_steps: 7
  settle_delay: 250ms
device:
  serial: emulator-5554
`), 0o644))

	t.Setenv("DROIDPILOT_AGENT_STUCK_THRESHOLD", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Agent.MaxSteps)
	assert.Equal(t, 250*time.Millisecond, cfg.Agent.SettleDelay)
	assert.Equal(t, "emulator-5554", cfg.Device.Serial)
	assert.Equal(t, 4, cfg.Agent.StuckThreshold, "env overrides file")
	assert.Equal(t, 3, NewDefault().Agent.StuckThreshold, "defaults untouched")
}

func TestLoadExplicitMissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max steps", func(c *Config) { c.Agent.MaxSteps = 0 }},
		{"negative max steps", func(c *Config) { c.Agent.MaxSteps = -1 }},
		{"threshold below two", func(c *Config) { c.Agent.StuckThreshold = 1 }},
		{"ratio at one", func(c *Config) { c.Agent.QAPassRatio = 1.0 }},
		{"negative ratio", func(c *Config) { c.Agent.QAPassRatio = -0.1 }},
		{"negative settle", func(c *Config) { c.Agent.SettleDelay = -time.Second }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefault()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
