package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kataras/golog"

	"github.com/ent0n29/nova-relay/internal/backend"
	"github.com/ent0n29/nova-relay/internal/bot"
	"github.com/ent0n29/nova-relay/internal/config"
	"github.com/ent0n29/nova-relay/internal/memory"
	"github.com/ent0n29/nova-relay/internal/observability"
)

// Relay is the conversational core the API exposes.
type Relay interface {
	HandleMessage(ctx context.Context, msg bot.Message) (bot.Reply, error)
	Context(userID string) []memory.Entry
	Forget(ctx context.Context, userID string) error
}

type Server struct {
	cfg      config.Config
	relay    Relay
	metrics  *observability.Metrics
	log      *golog.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, relay Relay, metrics *observability.Metrics, logger *golog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		relay:   relay,
		metrics: metrics,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive the relay socket unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Bot bridges and other non-browser clients omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/messages", s.handleMessage)
	r.Get("/v1/memory/{userID}", s.handleGetMemory)
	r.Post("/v1/memory/{userID}/clear", s.handleClearMemory)
	r.Get("/v1/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": s.cfg.BackendAdapterMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.relay == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "relay not configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg bot.Message
	if err := decodeJSON(r, &msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(msg.UserID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}

	reply, err := s.relay.HandleMessage(r.Context(), msg)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "turn_abandoned", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"context": s.relay.Context(userID),
	})
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}

	if err := s.relay.Forget(r.Context(), userID); err != nil {
		code := "backend_clear_failed"
		if _, ok := backend.AsStatusError(err); ok {
			code = "backend_clear_rejected"
		}
		s.log.Warnf("clear memory for %s: local buffer cleared, backend failed: %v", userID, err)
		respondError(w, http.StatusBadGateway, code, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": userID, "status": "cleared"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
