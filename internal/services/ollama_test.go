package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOllamaService(t *testing.T) {
	service := NewOllamaService("", "llama3", discardLogger())
	assert.Equal(t, ollamaBaseURL, service.baseURL)

	service = NewOllamaService("http://ollama:11434/", "llama3", discardLogger())
	assert.Equal(t, "http://ollama:11434", service.baseURL)
}

func TestOllamaService_GetChatResponse(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "A crow watches you."}, "eval_count": 12}`))
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "llama3", discardLogger())
	resp, err := service.GetChatResponse(context.Background(), []chat.ChatMessage{
		{Role: chat.ChatRoleUser, Content: "I look up."},
	})
	require.NoError(t, err)
	assert.Equal(t, "A crow watches you.", resp.Message)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
}

func TestOllamaService_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "  "}}`))
	}))
	defer srv.Close()

	resp, err := NewOllamaService(srv.URL, "llama3", discardLogger()).GetChatResponse(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, msgNoResponse, resp.Message)
}

func TestOllamaService_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaService(srv.URL, "llama3", discardLogger()).GetChatResponse(context.Background(), nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "ollama", apiErr.Provider)
}

func TestOllamaService_InitModel(t *testing.T) {
	var pulled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models": [{"name": "mistral:latest"}]}`))
		case "/api/pull":
			pulled.Store(true)
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "llama3", discardLogger())
	require.NoError(t, service.InitModel(context.Background(), "mistral"))
	assert.False(t, pulled.Load())

	require.NoError(t, service.InitModel(context.Background(), "llama3"))
	assert.True(t, pulled.Load())
}

func TestOllamaService_InitModelNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "llama3", discardLogger())
	service.retryDelay = time.Millisecond
	assert.ErrorContains(t, service.InitModel(context.Background(), "llama3"), "did not become ready")
}
