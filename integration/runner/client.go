package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

// ChatReply is the api's answer to one turn.
type ChatReply struct {
	GameStateID uuid.UUID            `json:"gamestate_id"`
	Message     string               `json:"message"`
	GameState   *world.WorldState    `json:"game_state"`
	Warnings    []world.MergeWarning `json:"warnings"`
}

// Client is a minimal gm-engine api client for test runs.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

// CreateGameState starts a new adventure and returns its id.
func (c *Client) CreateGameState(ctx context.Context) (uuid.UUID, error) {
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/gamestate", nil, http.StatusCreated, &created); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create gamestate: %w", err)
	}
	return created.ID, nil
}

func (c *Client) PatchGameState(ctx context.Context, id uuid.UUID, delta map[string]any) error {
	if err := c.do(ctx, http.MethodPatch, "/v1/gamestate/"+id.String(), delta, http.StatusOK, nil); err != nil {
		return fmt.Errorf("failed to patch gamestate: %w", err)
	}
	return nil
}

func (c *Client) ResetGameState(ctx context.Context, id uuid.UUID) error {
	if err := c.do(ctx, http.MethodPost, "/v1/gamestate/"+id.String()+"/reset", nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("failed to reset gamestate: %w", err)
	}
	return nil
}

func (c *Client) DeleteGameState(ctx context.Context, id uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/gamestate/"+id.String(), nil, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("failed to delete gamestate: %w", err)
	}
	return nil
}

// GetWorld retrieves the current world state.
func (c *Client) GetWorld(ctx context.Context, id uuid.UUID) (*world.WorldState, error) {
	ws := world.New()
	if err := c.do(ctx, http.MethodGet, "/v1/gamestate/"+id.String(), nil, http.StatusOK, ws); err != nil {
		return nil, fmt.Errorf("failed to get gamestate: %w", err)
	}
	return ws, nil
}

// PostChat plays one turn.
func (c *Client) PostChat(ctx context.Context, id uuid.UUID, message string) (*ChatReply, error) {
	var reply ChatReply
	req := chat.ChatRequest{GameStateID: id, Message: message}
	if err := c.do(ctx, http.MethodPost, "/v1/chat", req, http.StatusOK, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s returned %d (expected %d): %s", method, path, resp.StatusCode, want, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
