package gm

import (
	"encoding/json"
	"strings"
)

// Delimiters of the state update block the Game Master appends to its
// narration.
const (
	StateUpdateOpen  = "[STATE_UPDATE]"
	StateUpdateClose = "[/STATE_UPDATE]"
)

// ExtractStateUpdate splits model output into the narration shown to the
// player and the world delta carried in its state update block.
//
// When the block is present and holds a JSON object, clean is the text
// before the opening tag and delta is the decoded object. Otherwise the
// original text is returned untouched with a nil delta; a malformed block
// is treated the same as no block.
func ExtractStateUpdate(text string) (clean string, delta map[string]any) {
	start := strings.Index(text, StateUpdateOpen)
	if start < 0 {
		return text, nil
	}
	body := text[start+len(StateUpdateOpen):]
	end := strings.Index(body, StateUpdateClose)
	if end < 0 {
		return text, nil
	}

	raw := stripFence(strings.TrimSpace(body[:end]))
	if err := json.Unmarshal([]byte(raw), &delta); err != nil || delta == nil {
		return text, nil
	}
	return strings.TrimSpace(text[:start]), delta
}

// stripFence removes a surrounding markdown code fence such as ```json.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(s[3:], "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
