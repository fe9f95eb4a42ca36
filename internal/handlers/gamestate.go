package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/internal/logger"
	"github.com/jwebster45206/gm-engine/internal/middleware"
	"github.com/jwebster45206/gm-engine/internal/services/events"
	"github.com/jwebster45206/gm-engine/internal/session"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

// GameStateResponse is returned when a session is created or reset.
type GameStateResponse struct {
	ID        uuid.UUID      `json:"id"`
	Message   string         `json:"message,omitempty"`
	GameState map[string]any `json:"game_state"`
}

// PatchResponse is returned after a delta is merged directly.
type PatchResponse struct {
	GameState map[string]any     `json:"game_state"`
	Result    *world.MergeResult `json:"result"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
}

type QuestsResponse struct {
	Quests []world.Record `json:"quests"`
}

type GameStateHandler struct {
	sessions  *session.Manager
	publisher events.Publisher
	logger    *slog.Logger
}

func NewGameStateHandler(sessions *session.Manager, publisher events.Publisher, logger *slog.Logger) *GameStateHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &GameStateHandler{
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
	}
}

// ServeHTTP handles HTTP requests for game state operations
// Routes:
// POST   /v1/gamestate              - Start a new adventure
// GET    /v1/gamestate/{id}         - Full world state
// GET    /v1/gamestate/{id}/summary - Narrator summary
// GET    /v1/gamestate/{id}/sheet   - Character sheet
// GET    /v1/gamestate/{id}/quests  - Active quests
// PATCH  /v1/gamestate/{id}         - Merge a delta
// POST   /v1/gamestate/{id}/reset   - Restart the adventure
// DELETE /v1/gamestate/{id}         - Delete the session
func (h *GameStateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/gamestate"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported on /v1/gamestate.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	idStr, sub, _ := strings.Cut(path, "/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid game state ID", "id", idStr, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid game state ID format")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.handleRead(w, r, id)
	case sub == "" && r.Method == http.MethodPatch:
		h.handlePatch(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case sub == "reset" && r.Method == http.MethodPost:
		h.handleReset(w, r, id)
	case (sub == "summary" || sub == "sheet" || sub == "quests") && r.Method == http.MethodGet:
		h.handleProjection(w, r, id, sub)
	case sub == "" || sub == "reset" || sub == "summary" || sub == "sheet" || sub == "quests":
		h.logger.Warn("Method not allowed for game state endpoint", "method", r.Method, "path", r.URL.Path)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown game state resource: "+sub)
	}
}

func (h *GameStateHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Start(r.Context())
	if err != nil {
		h.logger.Error("Failed to start session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create game state")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, GameStateResponse{
		ID:        s.ID,
		Message:   openingMessage(s),
		GameState: s.World.Dump(),
	})
}

func (h *GameStateHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, ok := h.load(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.World.Dump())
}

func (h *GameStateHandler) handleProjection(w http.ResponseWriter, r *http.Request, id uuid.UUID, name string) {
	s, ok := h.load(w, r, id)
	if !ok {
		return
	}
	switch name {
	case "summary":
		writeJSON(w, h.logger, http.StatusOK, SummaryResponse{Summary: s.World.Summarize()})
	case "sheet":
		writeJSON(w, h.logger, http.StatusOK, s.World.CharacterSheet())
	case "quests":
		quests := s.World.ActiveQuests()
		if quests == nil {
			quests = []world.Record{}
		}
		writeJSON(w, h.logger, http.StatusOK, QuestsResponse{Quests: quests})
	}
}

func (h *GameStateHandler) handlePatch(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	log := logger.WithSession(logger.WithRequestID(h.logger, middleware.RequestID(r.Context())), id.String())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("Failed to read patch body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var result *world.MergeResult
	s, err := h.sessions.Do(r.Context(), id, func(s *session.Session) error {
		var mergeErr error
		result, mergeErr = s.World.MergeJSON(body)
		return mergeErr
	})
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Game state not found")
		return
	case errors.Is(err, world.ErrInvalidArgument):
		log.Warn("Rejected delta", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Request body must be a JSON object of world sections")
		return
	case err != nil:
		log.Error("Failed to patch game state", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to update game state")
		return
	}

	logMergeResult(log, result)
	h.publishUpdate(r.Context(), id, result, s.World)
	writeJSON(w, h.logger, http.StatusOK, PatchResponse{GameState: s.World.Dump(), Result: result})
}

func (h *GameStateHandler) handleReset(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.sessions.Reset(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Game state not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to reset game state", "gamestate_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to reset game state")
		return
	}

	if err := h.publisher.PublishWorldReset(r.Context(), id, middleware.RequestID(r.Context())); err != nil {
		h.logger.Warn("Failed to publish reset event", "gamestate_id", id, "error", err)
	}
	writeJSON(w, h.logger, http.StatusOK, GameStateResponse{
		ID:        s.ID,
		Message:   openingMessage(s),
		GameState: s.World.Dump(),
	})
}

func (h *GameStateHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	err := h.sessions.Delete(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Game state not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete game state", "gamestate_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete game state")
		return
	}

	if err := h.publisher.PublishWorldDeleted(r.Context(), id, middleware.RequestID(r.Context())); err != nil {
		h.logger.Warn("Failed to publish delete event", "gamestate_id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// load fetches a session, writing the error response when it can't.
func (h *GameStateHandler) load(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*session.Session, bool) {
	s, err := h.sessions.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Game state not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to load game state", "gamestate_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load game state")
		return nil, false
	}
	return s, true
}

func (h *GameStateHandler) publishUpdate(ctx context.Context, id uuid.UUID, result *world.MergeResult, ws *world.WorldState) {
	publishUpdate(ctx, h.publisher, h.logger, id, result, ws)
}

func publishUpdate(ctx context.Context, p events.Publisher, log *slog.Logger, id uuid.UUID, result *world.MergeResult, ws *world.WorldState) {
	if !result.Changed() {
		return
	}
	// Publishing must not hang the response on a slow broker.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.PublishWorldUpdated(ctx, id, middleware.RequestID(ctx), result, ws.Location().String("name")); err != nil {
		log.Warn("Failed to publish world update", "gamestate_id", id, "error", err)
	}
}

// logMergeResult records what a merge changed and every warning it raised.
func logMergeResult(log *slog.Logger, result *world.MergeResult) {
	if result == nil {
		return
	}
	for _, w := range result.Warnings {
		log.Warn("Merge warning", "section", w.Section, "index", w.Index, "reason", w.Reason)
	}
	log.Info("World state merged",
		"applied", result.Applied,
		"npcs_added", result.NPCsAdded,
		"npcs_updated", result.NPCsUpdated,
		"quests_added", result.QuestsAdded,
		"quests_updated", result.QuestsUpdated,
		"events_appended", result.EventsAppended,
		"warnings", len(result.Warnings))
}

func openingMessage(s *session.Session) string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[0].Content
}
