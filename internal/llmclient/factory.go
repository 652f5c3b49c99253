package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
	"github.com/droidmind/droidpilot/internal/config"
)

// NewClient creates an LLMClient for the configured provider.
func NewClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderOpenAI, config.ProviderGemini)
	}
}
