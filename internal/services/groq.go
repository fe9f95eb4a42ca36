package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/gm-engine/pkg/chat"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"

	DefaultGroqTemperature = 0.8
	DefaultGroqMaxTokens   = 1000
)

// GroqService implements LLMService for Groq's OpenAI-compatible chat
// completions API
type GroqService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Ensure GroqService implements LLMService interface
var _ LLMService = (*GroqService)(nil)

// GroqChatRequest represents the request structure for chat completions
type GroqChatRequest struct {
	Model       string             `json:"model"`
	Messages    []chat.ChatMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream"`
}

// GroqChatChoice represents a single choice in the response
type GroqChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// GroqChatResponse represents the response structure for chat completions
type GroqChatResponse struct {
	ID      string           `json:"id"`
	Model   string           `json:"model"`
	Choices []GroqChatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewGroqService creates a Groq client. An empty baseURL uses the public
// endpoint.
func NewGroqService(apiKey, modelName, baseURL string, logger *slog.Logger) *GroqService {
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	return &GroqService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// InitModel is a no-op; Groq models need no warmup
func (g *GroqService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (g *GroqService) GetChatResponse(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	reqBody, err := json.Marshal(GroqChatRequest{
		Model:       g.modelName,
		Messages:    messages,
		Temperature: DefaultGroqTemperature,
		MaxTokens:   DefaultGroqMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: "groq", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var groqResp GroqChatResponse
	if err := json.Unmarshal(body, &groqResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if groqResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", groqResp.Error.Message)
	}

	g.logger.Debug("Groq chat completion",
		"model", g.modelName,
		"messages", len(messages),
		"total_tokens", groqResp.Usage.TotalTokens,
		"duration", time.Since(start))

	if len(groqResp.Choices) == 0 {
		return &chat.ChatResponse{Message: msgNoResponse}, nil
	}
	return &chat.ChatResponse{Message: groqResp.Choices[0].Message.Content}, nil
}
