package liveview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []InputEvent
}

func (r *recordingHandler) HandleInput(_ context.Context, ev InputEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingHandler) getEvents() []InputEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]InputEvent, len(r.events))
	copy(out, r.events)
	return out
}

func startTestServer(t *testing.T, handler InputHandler) (*Server, *Hub, string) {
	t.Helper()
	hub := NewHub(testPool(t), testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, handler, testLogger(t), []string{"http://ui.local"})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.handleWebSocket(ctx, w, r)
	}))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return server, hub, wsURL
}

func dialWS(t *testing.T, wsURL, origin string) (*websocket.Conn, error) {
	t.Helper()
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, headers)
	return ws, err
}

func TestServer_RejectsUnknownOrigin(t *testing.T) {
	_, _, wsURL := startTestServer(t, nil)

	_, err := dialWS(t, wsURL, "http://evil.local")
	assert.Error(t, err)

	_, err = dialWS(t, wsURL, "")
	assert.Error(t, err)
}

func TestServer_BroadcastReachesClient(t *testing.T) {
	_, hub, wsURL := startTestServer(t, nil)

	ws, err := dialWS(t, wsURL, "http://ui.local")
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(NewMessage(TypeSwapState, map[string]string{"amount_a": "5", "amount_b": "10000"}))

	var received Message
	require.NoError(t, ws.ReadJSON(&received))
	assert.Equal(t, TypeSwapState, received.Type)

	data, ok := received.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "5", data["amount_a"])
}

func TestServer_InboundEventReachesHandler(t *testing.T) {
	handler := &recordingHandler{}
	_, hub, wsURL := startTestServer(t, handler)

	ws, err := dialWS(t, wsURL, "http://ui.local")
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ws.WriteJSON(InputEvent{
		Form:   "swap",
		Action: ActionSetAmount,
		Side:   "a",
		Value:  "1.5",
	}))

	require.Eventually(t, func() bool {
		return len(handler.getEvents()) == 1
	}, time.Second, 5*time.Millisecond)

	ev := handler.getEvents()[0]
	assert.Equal(t, ActionSetAmount, ev.Action)
	assert.Equal(t, "a", ev.Side)
	assert.Equal(t, "1.5", ev.Value)
}

func TestServer_MalformedInputIsSkipped(t *testing.T) {
	handler := &recordingHandler{}
	_, hub, wsURL := startTestServer(t, handler)

	ws, err := dialWS(t, wsURL, "http://ui.local")
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, ws.WriteJSON(InputEvent{Form: "swap", Action: ActionListAssets}))

	require.Eventually(t, func() bool {
		return len(handler.getEvents()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, ActionListAssets, handler.getEvents()[0].Action)
}

func TestServer_ConnectionLimit(t *testing.T) {
	server, hub, wsURL := startTestServer(t, nil)
	server.SetMaxConnections(1)

	ws1, err := dialWS(t, wsURL, "http://ui.local")
	require.NoError(t, err)
	defer ws1.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	_, err = dialWS(t, wsURL, "http://ui.local")
	assert.Error(t, err)
}

func TestServer_HealthEndpoint(t *testing.T) {
	hub := NewHub(testPool(t), testLogger(t))
	server := NewServer(hub, nil, testLogger(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
