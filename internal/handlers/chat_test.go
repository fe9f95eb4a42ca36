package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/internal/services"
	"github.com/jwebster45206/gm-engine/internal/services/events"
	"github.com/jwebster45206/gm-engine/internal/session"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/gm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	manager *session.Manager
	llm     *services.MockLLMAPI
	pub     *recordingPublisher
	handler *ChatHandler
	id      uuid.UUID
}

func newChatFixture(t *testing.T, opts ChatOptions) *chatFixture {
	t.Helper()
	f := &chatFixture{
		manager: newTestManager(t),
		llm:     services.NewMockLLMAPI(),
		pub:     &recordingPublisher{},
	}
	f.handler = NewChatHandler(f.manager, f.llm, f.pub, opts, testLogger())
	s, err := f.manager.Start(context.Background())
	require.NoError(t, err)
	f.id = s.ID
	return f
}

func (f *chatFixture) send(message string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"gamestate_id":%q,"message":%q}`, f.id, message)
	return serve(f.handler, http.MethodPost, "/v1/chat", body)
}

func TestChatHandler_NarrationWithStateUpdate(t *testing.T) {
	f := newChatFixture(t, ChatOptions{HistoryLimit: 20})
	f.llm.SetResponse("You step into the cave. Something stirs.\n\n" +
		"[STATE_UPDATE]\n" +
		`{"location": {"name": "Dark Cave"}, "player": {"hp": 90}, "events": [{"description": "Entered the cave", "importance": "major"}]}` +
		"\n[/STATE_UPDATE]")

	rr := f.send("I enter the cave")

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[chat.ChatResponse](t, rr)
	assert.Equal(t, f.id, resp.GameStateID)
	assert.Equal(t, "You step into the cave. Something stirs.", resp.Message)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, "Dark Cave", resp.GameState["location"].(map[string]any)["name"])
	assert.Len(t, resp.GameState["events"], 2)

	s, err := f.manager.Get(context.Background(), f.id)
	require.NoError(t, err)
	assert.EqualValues(t, 90, s.World.Player()["hp"])
	require.Len(t, s.Messages, 3)
	assert.Equal(t, chat.ChatMessage{Role: chat.ChatRoleUser, Content: "I enter the cave"}, s.Messages[1])
	assert.Equal(t, chat.ChatMessage{Role: chat.ChatRoleAgent, Content: "You step into the cave. Something stirs."}, s.Messages[2])

	assert.Equal(t, []events.EventType{events.EventTypeWorldUpdated}, f.pub.types())
	assert.Equal(t, []string{"Dark Cave"}, f.pub.locations)
}

func TestChatHandler_PromptCarriesSummaryAndHistory(t *testing.T) {
	f := newChatFixture(t, ChatOptions{HistoryLimit: 20, ContentRating: "PG"})

	rr := f.send("I look around")
	require.Equal(t, http.StatusOK, rr.Code)

	sent := f.llm.LastMessages()
	require.Len(t, sent, 3)
	assert.Equal(t, chat.ChatRoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].Content, "Player: Adventurer (Level 1 Wanderer)")
	assert.Contains(t, sent[0].Content, "Content Rating: PG")
	assert.Equal(t, chat.ChatMessage{Role: chat.ChatRoleAgent, Content: gm.OpeningScene}, sent[1])
	assert.Equal(t, chat.ChatMessage{Role: chat.ChatRoleUser, Content: "I look around"}, sent[2])
}

func TestChatHandler_WithoutStateUpdate(t *testing.T) {
	f := newChatFixture(t, ChatOptions{HistoryLimit: 20})

	rr := f.send("I wait")

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[chat.ChatResponse](t, rr)
	assert.Equal(t, services.MockNarration, resp.Message)
	assert.Empty(t, f.pub.types())
}

func TestChatHandler_MalformedStateUpdateKeepsText(t *testing.T) {
	f := newChatFixture(t, ChatOptions{HistoryLimit: 20})
	raw := "The wind howls.\n[STATE_UPDATE]\n{\"player\": {\"hp\": }\n[/STATE_UPDATE]"
	f.llm.SetResponse(raw)

	rr := f.send("I listen")

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[chat.ChatResponse](t, rr)
	assert.Equal(t, raw, resp.Message)
	assert.EqualValues(t, 100, resp.GameState["player"].(map[string]any)["hp"])
	assert.Empty(t, f.pub.types())
}

func TestChatHandler_ReturnsMergeWarnings(t *testing.T) {
	f := newChatFixture(t, ChatOptions{HistoryLimit: 20})
	f.llm.SetResponse("A merchant waves.\n[STATE_UPDATE]\n" +
		`{"npcs": [{"name": "Merchant"}, "not a record"], "loot": 5}` +
		"\n[/STATE_UPDATE]")

	rr := f.send("I wave back")

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[chat.ChatResponse](t, rr)
	require.Len(t, resp.Warnings, 2)
	assert.Equal(t, "npcs", resp.Warnings[0].Section)
	assert.Equal(t, 1, resp.Warnings[0].Index)
	assert.Equal(t, "loot", resp.Warnings[1].Section)
	assert.Len(t, resp.GameState["npcs"], 2)
}

func TestChatHandler_ShortcutCommandSkipsModel(t *testing.T) {
	f := newChatFixture(t, ChatOptions{HistoryLimit: 20})

	rr := f.send("  Inventory ")

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[chat.ChatResponse](t, rr)
	assert.Equal(t, "You carry:\n- torch\n- waterskin\n- rusty dagger", resp.Message)
	assert.Equal(t, 0, f.llm.CallCount())

	s, err := f.manager.Get(context.Background(), f.id)
	require.NoError(t, err)
	assert.Len(t, s.Messages, 1)
}

func TestChatHandler_FiltersNarrationForFamilyRatings(t *testing.T) {
	f := newChatFixture(t, ChatOptions{HistoryLimit: 20, ContentRating: "PG"})
	f.llm.SetResponse("Damn, the bridge is out.")

	rr := f.send("I cross the bridge")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Dang, the bridge is out.", decodeBody[chat.ChatResponse](t, rr).Message)
}

func TestChatHandler_NoFilterForMatureRating(t *testing.T) {
	f := newChatFixture(t, ChatOptions{HistoryLimit: 20, ContentRating: "R"})
	f.llm.SetResponse("Damn, the bridge is out.")

	rr := f.send("I cross the bridge")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Damn, the bridge is out.", decodeBody[chat.ChatResponse](t, rr).Message)
}

func TestChatHandler_LLMFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"provider error", &services.APIError{Provider: "groq", StatusCode: 500, Body: "boom"}, http.StatusBadGateway},
		{"rate limited", &services.APIError{Provider: "groq", StatusCode: 429, Body: "slow down"}, http.StatusTooManyRequests},
		{"timeout", fmt.Errorf("request: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"transport", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, ChatOptions{HistoryLimit: 20})
			f.llm.SetError(tt.err)

			rr := f.send("I attack")

			assert.Equal(t, tt.status, rr.Code)
			assert.NotEmpty(t, decodeBody[ErrorResponse](t, rr).Error)

			// Failed turns are not recorded.
			s, err := f.manager.Get(context.Background(), f.id)
			require.NoError(t, err)
			assert.Len(t, s.Messages, 1)
		})
	}
}

func TestChatHandler_BadRequests(t *testing.T) {
	f := newChatFixture(t, ChatOptions{HistoryLimit: 20})

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, `{"message":`, http.StatusBadRequest},
		{"missing id", http.MethodPost, `{"message":"hello"}`, http.StatusBadRequest},
		{"empty message", http.MethodPost, fmt.Sprintf(`{"gamestate_id":%q,"message":"   "}`, f.id), http.StatusBadRequest},
		{"unknown session", http.MethodPost, fmt.Sprintf(`{"gamestate_id":%q,"message":"hi"}`, uuid.New()), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(f.handler, tt.method, "/v1/chat", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.NotEmpty(t, decodeBody[ErrorResponse](t, rr).Error)
		})
	}
	assert.Equal(t, 0, f.llm.CallCount())
}
