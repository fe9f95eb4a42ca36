package chat

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequest_Validate(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr string
	}{
		{name: "valid", req: ChatRequest{GameStateID: id, Message: "I light the torch"}},
		{name: "missing id", req: ChatRequest{Message: "hello"}, wantErr: "gamestate_id is required"},
		{name: "empty message", req: ChatRequest{GameStateID: id}, wantErr: "message cannot be empty"},
		{name: "blank message", req: ChatRequest{GameStateID: id, Message: "  \n\t"}, wantErr: "message cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestChatRequest_JSON(t *testing.T) {
	var req ChatRequest
	raw := `{"gamestate_id": "6f1c2a8e-4d55-4f0f-9a53-0d3c3b0f7b11", "message": "look"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	assert.Equal(t, "6f1c2a8e-4d55-4f0f-9a53-0d3c3b0f7b11", req.GameStateID.String())
	assert.Equal(t, "look", req.Message)
}

func TestChatResponse_OmitsEmpty(t *testing.T) {
	data, err := json.Marshal(ChatResponse{Message: "The mist thickens."})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "The mist thickens."}`, string(data))
}
