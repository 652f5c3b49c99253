// Package config loads and validates the droidpilot configuration from a
// YAML file, environment variables (DROIDPILOT_*), and CLI flag overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider identifiers accepted by the LLM client factory.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"` // megabytes, per rotated file
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"` // days
	Compress    bool   `mapstructure:"compress"`
	AddSource   bool   `mapstructure:"add_source"`
}

// AgentConfig holds the control-loop knobs.
type AgentConfig struct {
	MaxSteps       int           `mapstructure:"max_steps"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	StuckThreshold int           `mapstructure:"stuck_threshold"`
	// QAPassRatio is the fraction of recorded steps that must pass for a QA
	// run to be judged passed overall (strict greater-than).
	QAPassRatio float64 `mapstructure:"qa_pass_ratio"`
	// HostAppID is the agent's own host application. The loop must never
	// plan against this application's UI.
	HostAppID string `mapstructure:"host_app_id"`
	// KnownApps maps goal keywords ("mail", "browser") to application IDs.
	KnownApps map[string]string `mapstructure:"known_apps"`
	// MaxObserveFailures is how many consecutive failed observations are
	// tolerated before the run is declared fatally failed.
	MaxObserveFailures int `mapstructure:"max_observe_failures"`
	// ForceQA records every run as a QA test regardless of goal phrasing.
	ForceQA bool `mapstructure:"force_qa"`
}

// LLMModelConfig describes one remote planning provider.
type LLMModelConfig struct {
	Provider   string        `mapstructure:"provider"`
	Endpoint   string        `mapstructure:"endpoint"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	// RequestsPerMinute caps the client-side request rate. Zero disables
	// the limiter.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// PlannerConfig configures the planning chain.
type PlannerConfig struct {
	Primary   LLMModelConfig `mapstructure:"primary"`
	Secondary LLMModelConfig `mapstructure:"secondary"`
	// DecisionTimeout bounds each link of the fallback chain in the
	// interactive path, on top of the transport timeout inside the client.
	DecisionTimeout time.Duration `mapstructure:"decision_timeout"`
	Temperature     float64       `mapstructure:"temperature"`
}

// SafetyConfig configures the safety gate.
type SafetyConfig struct {
	MaxGoalLength    int           `mapstructure:"max_goal_length"`
	HighRiskKeywords []string      `mapstructure:"high_risk_keywords"`
	SensitiveApps    []string      `mapstructure:"sensitive_apps"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout"`
}

// DeviceConfig configures the adb-backed automator.
type DeviceConfig struct {
	ADBPath string        `mapstructure:"adb_path"`
	Serial  string        `mapstructure:"serial"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ReportConfig configures QA artifact output.
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// Config is the root configuration object.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Planner PlannerConfig `mapstructure:"planner"`
	Safety  SafetyConfig  `mapstructure:"safety"`
	Device  DeviceConfig  `mapstructure:"device"`
	Report  ReportConfig  `mapstructure:"report"`
}

// NewDefault returns a Config with every default applied and no file read.
func NewDefault() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are statically known, so this unmarshal cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads the configuration from the given file (or the working
// directory's config.yaml when empty), layered under DROIDPILOT_* env vars.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("DROIDPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars carry the run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the loop cannot run with.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.StuckThreshold < 2 {
		return fmt.Errorf("agent.stuck_threshold must be at least 2, got %d", c.Agent.StuckThreshold)
	}
	if c.Agent.QAPassRatio < 0 || c.Agent.QAPassRatio >= 1 {
		return fmt.Errorf("agent.qa_pass_ratio must be in [0,1), got %f", c.Agent.QAPassRatio)
	}
	if c.Agent.SettleDelay < 0 {
		return fmt.Errorf("agent.settle_delay must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "droidpilot")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("agent.max_steps", 20)
	v.SetDefault("agent.settle_delay", 2*time.Second)
	v.SetDefault("agent.stuck_threshold", 3)
	v.SetDefault("agent.qa_pass_ratio", 0.5)
	v.SetDefault("agent.host_app_id", "com.droidmind.droidpilot")
	v.SetDefault("agent.max_observe_failures", 5)
	v.SetDefault("agent.known_apps", map[string]string{
		"mail":     "com.google.android.gm",
		"gmail":    "com.google.android.gm",
		"messages": "com.google.android.apps.messaging",
		"browser":  "com.android.chrome",
		"chrome":   "com.android.chrome",
		"youtube":  "com.google.android.youtube",
		"video":    "com.google.android.youtube",
		"maps":     "com.google.android.apps.maps",
		"settings": "com.android.settings",
		"camera":   "com.android.camera2",
		"clock":    "com.google.android.deskclock",
		"calendar": "com.google.android.calendar",
		"photos":   "com.google.android.apps.photos",
	})

	v.SetDefault("planner.primary.provider", ProviderOpenAI)
	v.SetDefault("planner.primary.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("planner.primary.model", "gpt-4o-mini")
	v.SetDefault("planner.primary.api_timeout", 30*time.Second)
	v.SetDefault("planner.primary.max_tokens", 512)
	v.SetDefault("planner.primary.requests_per_minute", 30)
	v.SetDefault("planner.secondary.provider", ProviderGemini)
	v.SetDefault("planner.secondary.model", "gemini-2.0-flash")
	v.SetDefault("planner.secondary.api_timeout", 30*time.Second)
	v.SetDefault("planner.secondary.max_tokens", 512)
	v.SetDefault("planner.secondary.requests_per_minute", 30)
	v.SetDefault("planner.decision_timeout", 5*time.Second)
	v.SetDefault("planner.temperature", 0.2)

	v.SetDefault("safety.max_goal_length", 500)
	v.SetDefault("safety.high_risk_keywords", []string{
		"send", "message", "delete", "purchase", "pay", "install",
	})
	v.SetDefault("safety.sensitive_apps", []string{
		"bank", "wallet", "authenticator", "pay", "finance",
	})
	v.SetDefault("safety.confirm_timeout", 60*time.Second)

	v.SetDefault("device.adb_path", "adb")
	v.SetDefault("device.timeout", 10*time.Second)

	v.SetDefault("report.dir", ".")
}
