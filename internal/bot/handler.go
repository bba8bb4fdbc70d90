package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/golog"

	"github.com/ent0n29/nova-relay/internal/backend"
	"github.com/ent0n29/nova-relay/internal/memory"
	"github.com/ent0n29/nova-relay/internal/observability"
	"github.com/ent0n29/nova-relay/internal/transcript"
)

const transcriptSaveTimeout = 5 * time.Second

// Options tunes user-facing wording and the clock.
type Options struct {
	BotName string
	Source  string
	Now     func() time.Time
}

// Handler runs one conversational turn per inbound message: remember the user's text, read
// back the recent context, ask the backend for a reply, remember the reply.
type Handler struct {
	memory      *memory.ConversationMemory
	backend     backend.Adapter
	transcripts transcript.Store
	metrics     *observability.Metrics
	log         *golog.Logger

	botName string
	source  string
	now     func() time.Time

	turnMu    sync.Mutex
	turnLocks map[string]*sync.Mutex
}

func NewHandler(
	mem *memory.ConversationMemory,
	adapter backend.Adapter,
	transcripts transcript.Store,
	metrics *observability.Metrics,
	logger *golog.Logger,
	opts Options,
) *Handler {
	if strings.TrimSpace(opts.BotName) == "" {
		opts.BotName = "Nova"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if transcripts == nil {
		transcripts = transcript.NopStore{}
	}
	return &Handler{
		memory:      mem,
		backend:     adapter,
		transcripts: transcripts,
		metrics:     metrics,
		log:         logger,
		botName:     opts.BotName,
		source:      opts.Source,
		now:         opts.Now,
		turnLocks:   make(map[string]*sync.Mutex),
	}
}

// HandleMessage never turns backend failures into errors; they become apology replies like any
// other answer. The error return is reserved for ctx ending mid-turn.
func (h *Handler) HandleMessage(ctx context.Context, msg Message) (Reply, error) {
	h.log.Debugf("Received message from %s: %s", msg.Author, msg.Content)

	if msg.FromSelf {
		return h.ignore("self"), nil
	}
	if strings.HasPrefix(msg.Content, "/") {
		return h.handleCommand(ctx, msg), nil
	}
	if !msg.Direct {
		return h.ignore("not_direct"), nil
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return h.ignore("empty"), nil
	}

	unlock := h.lockUser(msg.UserID)
	defer unlock()

	turnID := uuid.NewString()
	h.memory.AddMessage(msg.UserID, memory.RoleUser, text)
	h.metrics.MemoryUsers.Set(float64(h.memory.Users()))

	history := h.memory.GetContext(msg.UserID)
	h.saveTranscriptBestEffort(ctx, msg, history)

	replyText, outcome := h.generateReply(ctx, backend.ChatRequest{
		UserID:  msg.UserID,
		TurnID:  turnID,
		Message: text,
		Source:  h.source,
		Context: history,
	})
	if err := ctx.Err(); err != nil {
		h.metrics.MessagesRelayed.WithLabelValues("canceled").Inc()
		return Reply{}, fmt.Errorf("turn %s abandoned: %w", turnID, err)
	}

	h.memory.AddMessage(msg.UserID, memory.RoleAssistant, replyText)
	h.metrics.MessagesRelayed.WithLabelValues(outcome).Inc()
	return Reply{Text: replyText, TurnID: turnID}, nil
}

// Context exposes the age-filtered memory for a user.
func (h *Handler) Context(userID string) []memory.Entry {
	return h.memory.GetContext(userID)
}

// Forget clears the user's memory locally and asks the backend to do the same.
func (h *Handler) Forget(ctx context.Context, userID string) error {
	unlock := h.lockUser(userID)
	defer unlock()
	h.memory.ClearContext(userID)
	return h.backend.ClearMemory(ctx, userID)
}

func (h *Handler) handleCommand(ctx context.Context, msg Message) Reply {
	fields := strings.Fields(strings.TrimPrefix(msg.Content, "/"))
	if len(fields) == 0 {
		return h.ignore("empty_command")
	}
	name := strings.ToLower(fields[0])

	switch name {
	case "ping":
		h.log.Debugf("/ping command received")
		h.metrics.Commands.WithLabelValues(name).Inc()
		return Reply{Text: "Pong!", Command: name}
	case "forget":
		h.log.Debugf("/forget command received")
		h.metrics.Commands.WithLabelValues(name).Inc()
		return Reply{Text: h.forgetReply(ctx, msg.UserID), Command: name}
	default:
		h.metrics.Commands.WithLabelValues("unknown").Inc()
		return h.ignore("unknown_command")
	}
}

func (h *Handler) forgetReply(ctx context.Context, userID string) string {
	err := h.Forget(ctx, userID)
	if err == nil {
		h.log.Infof("Cleared %s's memory for user %s", h.botName, userID)
		return fmt.Sprintf("🧠 %s's memory has been cleared.", h.botName)
	}
	if se, ok := backend.AsStatusError(err); ok {
		h.log.Warnf("Failed to clear memory, status: %d", se.StatusCode)
		return fmt.Sprintf("❌ Could not clear %s’s memory.", h.botName)
	}
	h.log.Errorf("Exception during /forget: %v", err)
	return fmt.Sprintf("⚠️ Error: %v", err)
}

func (h *Handler) generateReply(ctx context.Context, req backend.ChatRequest) (string, string) {
	adapter := h.backend.Name()
	started := h.now()
	resp, err := h.backend.Reply(ctx, req)
	h.metrics.ObserveBackendLatency(h.now().Sub(started))

	if err == nil {
		h.log.Infof("Received reply from %s backend", adapter)
		if strings.TrimSpace(resp.Reply) == "" {
			return fmt.Sprintf("%s had no response.", h.botName), "empty_reply"
		}
		return resp.Reply, "ok"
	}

	if se, ok := backend.AsStatusError(err); ok {
		h.metrics.BackendErrors.WithLabelValues(adapter, strconv.Itoa(se.StatusCode)).Inc()
		h.log.Warnf("Non-200 response from %s backend: %d", adapter, se.StatusCode)
		return fmt.Sprintf("%s encountered an error: %d", h.botName, se.StatusCode), "backend_status"
	}

	h.metrics.BackendErrors.WithLabelValues(adapter, "transport").Inc()
	h.log.Errorf("Exception in %s backend call: %v", adapter, err)
	return fmt.Sprintf("%s is having a moment: %v", h.botName, err), "backend_error"
}

func (h *Handler) saveTranscriptBestEffort(ctx context.Context, msg Message, history []memory.Entry) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), transcriptSaveTimeout)
	defer cancel()

	err := h.transcripts.Save(saveCtx, transcript.Transcript{
		ID:        uuid.NewString(),
		UserID:    msg.UserID,
		Author:    msg.Author,
		Prompt:    FormatPrompt(h.botName, history),
		Turns:     len(history),
		CreatedAt: h.now(),
	})
	if err != nil {
		h.metrics.TranscriptWrites.WithLabelValues("error").Inc()
		h.log.Warnf("transcript save failed for %s: %v", msg.UserID, err)
		return
	}
	h.metrics.TranscriptWrites.WithLabelValues("ok").Inc()
	h.log.Debugf("Saved conversation for %s", msg.UserID)
}

func (h *Handler) ignore(reason string) Reply {
	h.metrics.MessagesRelayed.WithLabelValues("ignored_" + reason).Inc()
	return Reply{Ignored: true}
}

// lockUser serializes whole turns per user so a reply is always stored right after the
// message that produced it.
func (h *Handler) lockUser(userID string) func() {
	h.turnMu.Lock()
	mu, ok := h.turnLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		h.turnLocks[userID] = mu
	}
	h.turnMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
