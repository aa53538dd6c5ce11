package llm

import (
	"fmt"

	"quizforge/internal/config"
	"quizforge/internal/domain"

	"go.uber.org/zap"
)

// NewModelClient builds the client for the configured provider.
func NewModelClient(cfg config.ModelConfig, logger *zap.Logger) (domain.ModelClient, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg, logger)
	case "ollama":
		return NewOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}
