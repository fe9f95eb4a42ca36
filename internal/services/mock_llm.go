package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/gm-engine/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc       func(ctx context.Context, modelName string) error
	GetChatResponseFunc func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)

	// Track calls for testing
	InitModelCalls       []string
	GetChatResponseCalls []GetChatResponseCall

	mu sync.Mutex // protects all fields above
}

// Ensure MockLLMAPI implements LLMService interface
var _ LLMService = (*MockLLMAPI)(nil)

type GetChatResponseCall struct {
	Messages []chat.ChatMessage
}

// MockNarration is the default reply of the mock.
const MockNarration = "The mist parts before you. What do you do?"

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls:       make([]string, 0),
		GetChatResponseCalls: make([]GetChatResponseCall, 0),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)

	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// GetChatResponse mocks response generation
func (m *MockLLMAPI) GetChatResponse(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := append([]chat.ChatMessage(nil), messages...)
	m.GetChatResponseCalls = append(m.GetChatResponseCalls, GetChatResponseCall{Messages: recorded})

	if m.GetChatResponseFunc != nil {
		return m.GetChatResponseFunc(ctx, messages)
	}
	return &chat.ChatResponse{Message: MockNarration}, nil
}

// SetResponse makes every call return reply.
func (m *MockLLMAPI) SetResponse(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetChatResponseFunc = func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		return &chat.ChatResponse{Message: reply}, nil
	}
}

// SetError makes every call fail with err.
func (m *MockLLMAPI) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetChatResponseFunc = func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		return nil, err
	}
}

// CallCount returns how many times GetChatResponse was called.
func (m *MockLLMAPI) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GetChatResponseCalls)
}

// LastMessages returns the messages of the most recent call, or nil.
func (m *MockLLMAPI) LastMessages() []chat.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.GetChatResponseCalls) == 0 {
		return nil
	}
	return m.GetChatResponseCalls[len(m.GetChatResponseCalls)-1].Messages
}

// Reset clears all recorded calls and programmed behavior.
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = nil
	m.GetChatResponseFunc = nil
	m.InitModelCalls = make([]string, 0)
	m.GetChatResponseCalls = make([]GetChatResponseCall, 0)
}
