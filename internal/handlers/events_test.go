package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/internal/services/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroadcaster(t *testing.T) *events.Broadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return events.NewBroadcaster(client, testLogger())
}

// readEvent returns the next "event:" name and its data line.
func readEvent(t *testing.T, sc *bufio.Scanner) (string, string) {
	t.Helper()
	var name, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
	require.NoError(t, sc.Err())
	t.Fatal("stream ended before an event")
	return "", ""
}

func TestEventsHandler_StreamsWorldEvents(t *testing.T) {
	b := newTestBroadcaster(t)
	srv := httptest.NewServer(NewEventsHandler(b, testLogger()))
	defer srv.Close()

	id := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/gamestate/"+id.String(), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	name, data := readEvent(t, sc)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, id.String())

	require.NoError(t, b.PublishWorldReset(ctx, id, "req-9"))

	name, data = readEvent(t, sc)
	assert.Equal(t, string(events.EventTypeWorldReset), name)
	assert.Contains(t, data, `"request_id":"req-9"`)
}

func TestEventsHandler_BadRequests(t *testing.T) {
	h := NewEventsHandler(newTestBroadcaster(t), testLogger())

	rr := serve(h, http.MethodPost, "/v1/events/gamestate/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	for _, target := range []string{"/v1/events/gamestate/", "/v1/events/gamestate/nope", "/v1/events/gamestate/" + uuid.New().String() + "/extra"} {
		rr := serve(h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}
