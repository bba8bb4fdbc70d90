package httpapi

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ent0n29/nova-relay/internal/backend"
	"github.com/ent0n29/nova-relay/internal/bot"
	"github.com/ent0n29/nova-relay/internal/config"
	"github.com/ent0n29/nova-relay/internal/logging"
	"github.com/ent0n29/nova-relay/internal/memory"
	"github.com/ent0n29/nova-relay/internal/observability"
	"github.com/ent0n29/nova-relay/internal/protocol"
	"github.com/ent0n29/nova-relay/internal/transcript"
)

func newRelayServer(t *testing.T) *Server {
	t.Helper()
	metrics := observability.NewMetrics(fmt.Sprintf("test_chat_ws_%d", time.Now().UnixNano()))
	mem := memory.New(memory.Config{})
	handler := bot.NewHandler(mem, backend.NewMockAdapter(), transcript.NopStore{}, metrics, logging.Discard(), bot.Options{BotName: "Nova"})
	return New(config.Config{BotName: "Nova"}, handler, metrics, logging.Discard())
}

func TestRelayLoopForwardsErrorEventsInOrder(t *testing.T) {
	s := newRelayServer(t)
	inbound := make(chan any, 4)
	outbound := make(chan any, 4)

	inbound <- invalidMessageEvent(errors.New("bad frame"))
	inbound <- protocol.ChatMessage{Type: protocol.TypeChatMessage, UserID: "u1", Content: "hi", Direct: true, RequestID: "r1"}
	close(inbound)

	s.relayLoop(context.Background(), inbound, outbound)

	first, ok := (<-outbound).(protocol.ErrorEvent)
	if !ok || first.Code != "invalid_client_message" || first.Detail != "bad frame" {
		t.Fatalf("first outbound = %+v, want invalid_client_message error event", first)
	}
	second, ok := (<-outbound).(protocol.AssistantReply)
	if !ok || second.Text != "I heard you: hi" || second.RequestID != "r1" {
		t.Fatalf("second outbound = %+v, want assistant reply", second)
	}
	if _, open := <-outbound; open {
		t.Fatalf("outbound should be closed after inbound drains")
	}
}

func TestInvalidFrameAfterCancelIsDropped(t *testing.T) {
	s := newRelayServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	inbound := make(chan any, 1)
	// Nobody reads outbound, as when the writer has given up on a stalled client.
	outbound := make(chan any)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		s.relayLoop(ctx, inbound, outbound)
	}()

	inbound <- protocol.ChatMessage{Type: protocol.TypeChatMessage, UserID: "u1", Content: "hi", Direct: true}
	cancel()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		t.Fatalf("relayLoop did not stop after cancel")
	}

	// The worker has closed outbound; further reader-side events must not touch it.
	for i := 0; i < 100; i++ {
		enqueue(ctx, inbound, invalidMessageEvent(errors.New("bad frame")))
	}
	if len(inbound) == cap(inbound) && enqueue(ctx, inbound, "extra") {
		t.Fatalf("enqueue() = true on a full inbound after cancel")
	}
	if _, open := <-outbound; open {
		t.Fatalf("outbound should be closed once the worker stops")
	}
}
