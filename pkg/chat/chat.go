package chat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Game Master
	ChatRoleSystem = "system"    // Instructions and game state
)

// ChatMessage is a single turn in the conversation. The shape matches
// the OpenAI-compatible chat completions API.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatRequest is a player turn sent to the gm-engine api.
type ChatRequest struct {
	GameStateID uuid.UUID `json:"gamestate_id"`
	Message     string    `json:"message"`
}

// Validate checks that the request carries a session and a message.
func (cr *ChatRequest) Validate() error {
	if cr.GameStateID == uuid.Nil {
		return fmt.Errorf("gamestate_id is required")
	}
	if strings.TrimSpace(cr.Message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

// ChatResponse is either the narration for one turn or, when returned by
// an LLM service, the raw model output in Message.
type ChatResponse struct {
	GameStateID uuid.UUID            `json:"gamestate_id,omitzero"`
	Message     string               `json:"message,omitempty"`
	GameState   map[string]any       `json:"game_state,omitempty"`
	Warnings    []world.MergeWarning `json:"warnings,omitempty"`
}
