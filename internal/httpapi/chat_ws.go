package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/nova-relay/internal/bot"
	"github.com/ent0n29/nova-relay/internal/protocol"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
)

// handleChatWS lets a chat platform bridge stream messages in and replies out over one socket.
// Messages are handled in arrival order, one at a time per connection.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.log.Debugf("chat websocket connected from %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The reader only sends on inbound and the worker owns outbound, so each channel has
	// exactly one sender, which is also the one that closes it.
	inbound := make(chan any, 64)
	outbound := make(chan any, 64)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		s.relayLoop(ctx, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				s.metrics.WSWriteErrors.WithLabelValues("write_json").Inc()
				cancel()
				return
			}
			if t, ok := protocol.TypeOf(msg); ok {
				s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", "invalid").Inc()
			if !enqueue(ctx, inbound, invalidMessageEvent(err)) {
				break
			}
			continue
		}

		chat := parsed.(protocol.ChatMessage)
		s.metrics.WSMessages.WithLabelValues("inbound", string(chat.Type)).Inc()
		if !enqueue(ctx, inbound, chat) {
			break
		}
	}

	close(inbound)
	<-workerDone
	cancel()
	<-writerDone
	s.log.Debugf("chat websocket from %s closed", r.RemoteAddr)
}

// relayLoop handles inbound items in order. Chat messages are relayed; anything else, such as
// reader-side error events, is forwarded as is. It is the only sender on outbound and closes it
// on return.
func (s *Server) relayLoop(ctx context.Context, inbound <-chan any, outbound chan<- any) {
	defer close(outbound)
	for in := range inbound {
		out := in
		if msg, ok := in.(protocol.ChatMessage); ok {
			out = s.relayChatMessage(ctx, msg)
		}
		select {
		case <-ctx.Done():
			return
		case outbound <- out:
		}
	}
}

// enqueue reports false once ctx is done.
func enqueue(ctx context.Context, inbound chan<- any, v any) bool {
	select {
	case <-ctx.Done():
		return false
	case inbound <- v:
		return true
	}
}

func invalidMessageEvent(err error) protocol.ErrorEvent {
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		Code:      "invalid_client_message",
		Source:    "gateway",
		Retryable: false,
		Detail:    err.Error(),
	}
}

func (s *Server) relayChatMessage(ctx context.Context, msg protocol.ChatMessage) any {
	reply, err := s.relay.HandleMessage(ctx, bot.Message{
		UserID:  msg.UserID,
		Author:  msg.Author,
		Content: msg.Content,
		Direct:  msg.Direct,
	})
	if err != nil {
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			RequestID: msg.RequestID,
			Code:      "turn_abandoned",
			Source:    "relay",
			Retryable: true,
			Detail:    err.Error(),
		}
	}
	if reply.Ignored {
		return protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			UserID:    msg.UserID,
			RequestID: msg.RequestID,
			Code:      "ignored",
		}
	}
	return protocol.AssistantReply{
		Type:      protocol.TypeAssistantReply,
		UserID:    msg.UserID,
		RequestID: msg.RequestID,
		TurnID:    reply.TurnID,
		Command:   reply.Command,
		Text:      reply.Text,
	}
}
