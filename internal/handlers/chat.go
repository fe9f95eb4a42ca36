package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/jwebster45206/gm-engine/internal/logger"
	"github.com/jwebster45206/gm-engine/internal/middleware"
	"github.com/jwebster45206/gm-engine/internal/services"
	"github.com/jwebster45206/gm-engine/internal/services/events"
	"github.com/jwebster45206/gm-engine/internal/session"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/gm"
	"github.com/jwebster45206/gm-engine/pkg/textfilter"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

var errLLM = errors.New("llm request failed")

// ChatOptions tunes how a turn is narrated.
type ChatOptions struct {
	HistoryLimit  int
	ContentRating string
}

// ChatHandler runs one Game Master turn per request.
type ChatHandler struct {
	sessions  *session.Manager
	llm       services.LLMService
	publisher events.Publisher
	filter    *textfilter.Filter
	opts      ChatOptions
	logger    *slog.Logger
}

func NewChatHandler(sessions *session.Manager, llm services.LLMService, publisher events.Publisher, opts ChatOptions, logger *slog.Logger) *ChatHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	h := &ChatHandler{
		sessions:  sessions,
		llm:       llm,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
	if textfilter.ShouldFilterContent(opts.ContentRating) {
		h.filter = textfilter.New()
	}
	return h
}

// ServeHTTP handles POST /v1/chat
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for chat endpoint",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var request chat.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'gamestate_id' and 'message' fields.")
		return
	}
	if err := request.Validate(); err != nil {
		h.logger.Warn("Invalid chat request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	log := logger.WithSession(logger.WithRequestID(h.logger, middleware.RequestID(r.Context())), request.GameStateID.String())

	var (
		reply  string
		result *world.MergeResult
	)
	s, err := h.sessions.Do(r.Context(), request.GameStateID, func(s *session.Session) error {
		var turnErr error
		reply, result, turnErr = h.turn(r.Context(), log, s, request.Message)
		return turnErr
	})
	if err != nil {
		status, msg := chatErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error("Chat turn failed", "error", err, "status", status)
		} else {
			log.Warn("Chat turn rejected", "error", err, "status", status)
		}
		writeError(w, h.logger, status, msg)
		return
	}

	response := chat.ChatResponse{
		GameStateID: s.ID,
		Message:     reply,
		GameState:   s.World.Dump(),
	}
	if result != nil {
		logMergeResult(log, result)
		response.Warnings = result.Warnings
		publishUpdate(r.Context(), h.publisher, log, s.ID, result, s.World)
	}
	writeJSON(w, h.logger, http.StatusOK, response)
}

// turn answers a shortcut command from the world state, or asks the model
// for narration and folds its state update into the world. It runs with
// the session lock held.
func (h *ChatHandler) turn(ctx context.Context, log *slog.Logger, s *session.Session, input string) (string, *world.MergeResult, error) {
	if cmd := TryHandleCommand(s.World, input); cmd.Handled {
		log.Debug("Answered shortcut command", "input", input)
		return cmd.Message, nil, nil
	}

	messages, err := gm.New().
		WithWorld(s.World).
		WithHistory(s.Messages).
		WithUserMessage(input).
		WithContentRating(h.opts.ContentRating).
		WithHistoryLimit(h.opts.HistoryLimit).
		Build()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	resp, err := h.llm.GetChatResponse(ctx, messages)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", errLLM, err)
	}

	narration, delta := gm.ExtractStateUpdate(resp.Message)
	var result *world.MergeResult
	if delta != nil {
		result, err = s.World.Merge(delta)
		if err != nil {
			// Extraction only yields objects, so this is a bug if it happens.
			log.Error("Failed to merge state update", "error", err)
			result = nil
		}
	} else if strings.Contains(resp.Message, gm.StateUpdateOpen) {
		log.Warn("Ignored malformed state update block")
	}

	if h.filter != nil {
		narration = h.filter.Apply(narration)
	}

	s.Messages = append(s.Messages,
		chat.ChatMessage{Role: chat.ChatRoleUser, Content: input},
		chat.ChatMessage{Role: chat.ChatRoleAgent, Content: narration},
	)
	return narration, result, nil
}

// chatErrorStatus maps a failed turn to its HTTP status and client message.
func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "Game state not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The Game Master took too long to answer"
	case errors.Is(err, errLLM):
		var apiErr *services.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return http.StatusTooManyRequests, "The Game Master is busy. Try again shortly."
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return http.StatusGatewayTimeout, "The Game Master took too long to answer"
		}
		return http.StatusBadGateway, "Failed to get a response from the Game Master"
	default:
		return http.StatusInternalServerError, "Failed to process chat turn"
	}
}
