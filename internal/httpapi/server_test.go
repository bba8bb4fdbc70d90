package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/nova-relay/internal/backend"
	"github.com/ent0n29/nova-relay/internal/bot"
	"github.com/ent0n29/nova-relay/internal/config"
	"github.com/ent0n29/nova-relay/internal/logging"
	"github.com/ent0n29/nova-relay/internal/memory"
	"github.com/ent0n29/nova-relay/internal/observability"
	"github.com/ent0n29/nova-relay/internal/transcript"
)

func newTestServer(t *testing.T, adapter backend.Adapter) (*httptest.Server, *memory.ConversationMemory) {
	t.Helper()
	cfg := config.Config{BackendAdapterMode: "mock", BotName: "Nova"}
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", time.Now().UnixNano()))
	mem := memory.New(memory.Config{MaxMessages: 3, MaxAge: 30 * time.Minute})
	handler := bot.NewHandler(mem, adapter, transcript.NopStore{}, metrics, logging.Discard(), bot.Options{BotName: "Nova"})
	srv := New(cfg, handler, metrics, logging.Discard())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, mem
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(v)
	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return res
}

func TestPostMessageAndReadMemory(t *testing.T) {
	ts, _ := newTestServer(t, backend.NewMockAdapter())

	res := postJSON(t, ts.URL+"/v1/messages", map[string]any{
		"user_id": "u1",
		"author":  "sam",
		"content": "hi",
		"direct":  true,
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var reply bot.Reply
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Text != "I heard you: hi" {
		t.Fatalf("reply.Text = %q, want %q", reply.Text, "I heard you: hi")
	}

	memRes, err := http.Get(ts.URL + "/v1/memory/u1")
	if err != nil {
		t.Fatalf("GET memory error = %v", err)
	}
	defer memRes.Body.Close()
	var payload struct {
		UserID  string         `json:"user_id"`
		Context []memory.Entry `json:"context"`
	}
	if err := json.NewDecoder(memRes.Body).Decode(&payload); err != nil {
		t.Fatalf("decode memory: %v", err)
	}
	if len(payload.Context) != 2 || payload.Context[1].Role != memory.RoleAssistant {
		t.Fatalf("unexpected context: %+v", payload.Context)
	}
}

func TestPostMessageRequiresUserID(t *testing.T) {
	ts, _ := newTestServer(t, backend.NewMockAdapter())
	res := postJSON(t, ts.URL+"/v1/messages", map[string]any{"content": "hi", "direct": true})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestGetMemoryUnknownUserIsEmptyList(t *testing.T) {
	ts, mem := newTestServer(t, backend.NewMockAdapter())
	res, err := http.Get(ts.URL + "/v1/memory/nobody")
	if err != nil {
		t.Fatalf("GET memory error = %v", err)
	}
	defer res.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	ctx, ok := payload["context"].([]any)
	if !ok || len(ctx) != 0 {
		t.Fatalf("context = %#v, want empty list", payload["context"])
	}
	if mem.Users() != 0 {
		t.Fatalf("Users() = %d, want 0 after read of unknown user", mem.Users())
	}
}

func TestClearMemory(t *testing.T) {
	ts, mem := newTestServer(t, backend.NewMockAdapter())
	mem.AddMessage("u1", memory.RoleUser, "hi")

	res := postJSON(t, ts.URL+"/v1/memory/u1/clear", nil)
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if mem.Len("u1") != 0 {
		t.Fatalf("Len() = %d, want 0", mem.Len("u1"))
	}
}

func TestClearMemoryBackendFailure(t *testing.T) {
	ts, mem := newTestServer(t, clearFailAdapter{})
	mem.AddMessage("u1", memory.RoleUser, "hi")

	res := postJSON(t, ts.URL+"/v1/memory/u1/clear", nil)
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadGateway)
	}
	if mem.Len("u1") != 0 {
		t.Fatalf("local memory should be cleared even when the backend fails")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t, backend.NewMockAdapter())
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}

func TestChatWebSocketRelay(t *testing.T) {
	ts, _ := newTestServer(t, backend.NewMockAdapter())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	send := func(v any) map[string]any {
		t.Helper()
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("WriteJSON() error = %v", err)
		}
		var got map[string]any
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return got
	}

	got := send(map[string]any{"type": "chat_message", "user_id": "u1", "content": "hello", "direct": true, "request_id": "r1"})
	if got["type"] != "assistant_reply" || got["text"] != "I heard you: hello" || got["request_id"] != "r1" {
		t.Fatalf("unexpected reply: %+v", got)
	}

	got = send(map[string]any{"type": "chat_message", "user_id": "u1", "content": "/ping"})
	if got["text"] != "Pong!" || got["command"] != "ping" {
		t.Fatalf("unexpected ping reply: %+v", got)
	}

	got = send(map[string]any{"type": "chat_message", "user_id": "u1", "content": "in a channel"})
	if got["type"] != "system_event" || got["code"] != "ignored" {
		t.Fatalf("unexpected ignored reply: %+v", got)
	}

	got = send(map[string]any{"type": "bogus"})
	if got["type"] != "error_event" || got["code"] != "invalid_client_message" {
		t.Fatalf("unexpected error reply: %+v", got)
	}
}

func TestChatWebSocketRejectsForeignOrigin(t *testing.T) {
	ts, _ := newTestServer(t, backend.NewMockAdapter())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, res, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatalf("dial with foreign origin should fail")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %+v, want 403", res)
	}
}

type clearFailAdapter struct{}

func (clearFailAdapter) Name() string { return "clear-fail" }

func (clearFailAdapter) Reply(context.Context, backend.ChatRequest) (backend.ChatResponse, error) {
	return backend.ChatResponse{Reply: "ok"}, nil
}

func (clearFailAdapter) ClearMemory(context.Context, string) error {
	return errors.New("backend unreachable")
}
