package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/gm-engine/internal/config"
	"github.com/jwebster45206/gm-engine/pkg/chat"
)

const msgNoResponse = "(no response)"

// LLMService defines the interface for interacting with the LLM API
type LLMService interface {
	// InitModel prepares the model on startup
	InitModel(ctx context.Context, modelName string) error

	// GetChatResponse returns the model's reply to messages. The raw
	// output, including any state update block, is in Message.
	GetChatResponse(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
}

// APIError is a non-200 reply from an LLM provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// NewLLMService builds the provider selected by cfg.
func NewLLMService(cfg *config.Config, logger *slog.Logger) (LLMService, error) {
	switch cfg.LLMProvider {
	case config.ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY is required when using the groq provider")
		}
		return NewGroqService(cfg.GroqAPIKey, cfg.ModelName, cfg.LLMBaseURL, logger), nil
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when using the anthropic provider")
		}
		return NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, cfg.LLMBaseURL, logger), nil
	case config.ProviderOllama:
		return NewOllamaService(cfg.LLMBaseURL, cfg.ModelName, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
