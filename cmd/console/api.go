package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// adventure is a session as the console sees it.
type adventure struct {
	ID      uuid.UUID
	Opening string
	World   *world.WorldState
}

type gameStateResponse struct {
	ID        uuid.UUID         `json:"id"`
	Message   string            `json:"message"`
	GameState *world.WorldState `json:"game_state"`
}

type chatReply struct {
	GameStateID uuid.UUID            `json:"gamestate_id"`
	Message     string               `json:"message"`
	GameState   *world.WorldState    `json:"game_state"`
	Warnings    []world.MergeWarning `json:"warnings"`
}

// apiClient talks to the gm-engine api.
type apiClient struct {
	http    *http.Client
	baseURL string
}

func (c *apiClient) testConnection() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *apiClient) startAdventure() (*adventure, error) {
	var resp gameStateResponse
	if err := c.do(http.MethodPost, "/v1/gamestate", nil, http.StatusCreated, &resp); err != nil {
		return nil, fmt.Errorf("failed to create game state: %w", err)
	}
	return &adventure{ID: resp.ID, Opening: resp.Message, World: resp.GameState}, nil
}

func (c *apiClient) resetAdventure(id uuid.UUID) (*adventure, error) {
	var resp gameStateResponse
	if err := c.do(http.MethodPost, "/v1/gamestate/"+id.String()+"/reset", nil, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("failed to reset game state: %w", err)
	}
	return &adventure{ID: resp.ID, Opening: resp.Message, World: resp.GameState}, nil
}

func (c *apiClient) getWorld(id uuid.UUID) (*world.WorldState, error) {
	ws := world.New()
	if err := c.do(http.MethodGet, "/v1/gamestate/"+id.String(), nil, http.StatusOK, ws); err != nil {
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}
	return ws, nil
}

func (c *apiClient) getSummary(id uuid.UUID) (string, error) {
	var resp struct {
		Summary string `json:"summary"`
	}
	if err := c.do(http.MethodGet, "/v1/gamestate/"+id.String()+"/summary", nil, http.StatusOK, &resp); err != nil {
		return "", fmt.Errorf("failed to get summary: %w", err)
	}
	return resp.Summary, nil
}

func (c *apiClient) sendChat(id uuid.UUID, message string) (*chatReply, error) {
	req := chat.ChatRequest{GameStateID: id, Message: message}
	var resp chatReply
	if err := c.do(http.MethodPost, "/v1/chat", req, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	return &resp, nil
}

// do sends body as JSON and decodes a response with the wanted status
// into out.
func (c *apiClient) do(method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
