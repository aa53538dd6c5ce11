package llm

import (
	"context"
	"fmt"
	"net/http"

	"quizforge/internal/config"
	"quizforge/internal/domain"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
)

// LangchainClient adapts any langchaingo llms.Model to domain.ModelClient.
type LangchainClient struct {
	llm         llms.Model
	temperature float64
	logger      *zap.Logger
}

func NewLangchainClient(llm llms.Model, temperature float64, logger *zap.Logger) *LangchainClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LangchainClient{llm: llm, temperature: temperature, logger: logger}
}

// NewOllamaClient connects to an Ollama server. The context window is passed
// on as num_ctx so the server does not silently truncate long prompts.
func NewOllamaClient(cfg config.ModelConfig, logger *zap.Logger) (*LangchainClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("model.base_url is required for the ollama provider")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("model.name cannot be empty")
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Name),
		ollama.WithHTTPClient(httpClient),
		ollama.WithRunnerNumCtx(cfg.ContextWindow),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	if logger != nil {
		logger.Info("Initializing Ollama model client", zap.String("model", cfg.Name), zap.String("server", cfg.BaseURL))
	}
	return NewLangchainClient(llm, cfg.Temperature, logger), nil
}

func (c *LangchainClient) Generate(ctx context.Context, prompt string) (string, error) {
	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(c.temperature))
	if err != nil {
		classified := classifyTransport(err)
		c.logger.Warn("LLM call failed", zap.Bool("transient", domain.IsTransient(classified)), zap.Error(err))
		return "", classified
	}
	return completion, nil
}

var _ domain.ModelClient = (*LangchainClient)(nil)
