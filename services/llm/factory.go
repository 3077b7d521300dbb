package llm

import (
	"fmt"

	"github.com/AleutianAI/flywise/pkg/config"
)

// NewFromConfig builds the backend selected by cfg.Backend.
func NewFromConfig(cfg config.LLMConfig) (LLMClient, error) {
	switch cfg.Backend {
	case "openai", "":
		return NewOpenAIClient(OpenAIOptions{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	case "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", cfg.Backend)
	}
}
