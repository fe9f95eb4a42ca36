package gm

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

// DefaultHistoryLimit is the chat history window used when none is set.
const DefaultHistoryLimit = 20

// Content rating guidance appended to the system prompt.
const (
	ContentRatingG    = `Write content suitable for young children. Avoid violence and scary elements. Use simple language and positive messages.`
	ContentRatingPG   = `Write content suitable for children and families. Mild peril or tension is okay, but avoid strong language, explicit violence, or dark themes.`
	ContentRatingPG13 = `Write content appropriate for teenagers. Action, danger and mild swearing are fine, but avoid graphic violence and explicit adult situations.`
	ContentRatingR    = `Write with full freedom for adult audiences. All content should progress the story.`
)

// ContentRatingPrompt returns the guidance for rating, or "" when the
// rating is unset or unknown.
func ContentRatingPrompt(rating string) string {
	switch strings.ToUpper(strings.TrimSpace(rating)) {
	case "G":
		return ContentRatingG
	case "PG":
		return ContentRatingPG
	case "PG13", "PG-13":
		return ContentRatingPG13
	case "R":
		return ContentRatingR
	default:
		return ""
	}
}

// Builder assembles the message list sent to the model for one turn.
type Builder struct {
	ws            *world.WorldState
	history       []chat.ChatMessage
	userMessage   string
	contentRating string
	historyLimit  int
	messages      []chat.ChatMessage
}

// New creates a builder with the default history window.
func New() *Builder {
	return &Builder{
		historyLimit: DefaultHistoryLimit,
		messages:     make([]chat.ChatMessage, 0),
	}
}

// WithWorld sets the world whose summary is embedded in the system prompt.
func (b *Builder) WithWorld(ws *world.WorldState) *Builder {
	b.ws = ws
	return b
}

// WithHistory sets the prior conversation, oldest first.
func (b *Builder) WithHistory(history []chat.ChatMessage) *Builder {
	b.history = history
	return b
}

// WithUserMessage sets the player's message for this turn.
func (b *Builder) WithUserMessage(message string) *Builder {
	b.userMessage = message
	return b
}

// WithContentRating sets the rating guidance added to the system prompt.
func (b *Builder) WithContentRating(rating string) *Builder {
	b.contentRating = rating
	return b
}

// WithHistoryLimit sets the chat history window size. Zero or less sends
// no history.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// Build returns the system prompt, the windowed history and the user
// message, in that order.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.ws == nil {
		return nil, fmt.Errorf("world state is required")
	}

	b.messages = make([]chat.ChatMessage, 0, len(b.history)+2)
	b.addSystemPrompt()
	b.addHistory()
	b.addUserMessage()
	return b.messages, nil
}

func (b *Builder) addSystemPrompt() {
	prompt := SystemPrompt(b.ws.Summarize())
	if guidance := ContentRatingPrompt(b.contentRating); guidance != "" {
		prompt += "\n\nContent Rating: " + strings.ToUpper(strings.TrimSpace(b.contentRating)) + " (" + guidance + ")"
	}
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: prompt,
	})
}

func (b *Builder) addHistory() {
	if b.historyLimit <= 0 || len(b.history) == 0 {
		return
	}
	start := max(len(b.history)-b.historyLimit, 0)
	b.messages = append(b.messages, b.history[start:]...)
}

func (b *Builder) addUserMessage() {
	if b.userMessage == "" {
		return
	}
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleUser,
		Content: b.userMessage,
	})
}

// BuildMessages is a convenience for the common case: the system prompt
// for ws followed by the last limit messages of history.
func BuildMessages(ws *world.WorldState, history []chat.ChatMessage, limit int) ([]chat.ChatMessage, error) {
	return New().
		WithWorld(ws).
		WithHistory(history).
		WithHistoryLimit(limit).
		Build()
}
