package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"quizforge/internal/config"
	"quizforge/internal/domain"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, OpenRouter, a local gateway) through go-openai.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

func NewOpenAIClient(cfg config.ModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model.api_key is required for the openai provider")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("model.name cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger.Info("Initializing OpenAI-compatible model client",
		zap.String("model", cfg.Name), zap.String("base_url", clientCfg.BaseURL))
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Name,
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}, nil
}

// Generate sends prompt as a single user message and returns the first choice.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		classified := classifyOpenAIError(err)
		c.logger.Warn("Chat completion failed",
			zap.String("model", c.model), zap.Bool("transient", domain.IsTransient(classified)), zap.Error(err))
		return "", classified
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewTransientProviderError(errors.New("chat completion returned no choices"))
	}

	c.logger.Debug("Chat completion received",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}
	return classifyTransport(err)
}

var _ domain.ModelClient = (*OpenAIClient)(nil)
