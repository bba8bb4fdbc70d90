package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/nova-relay/internal/memory"
)

// ChatRequest is the normalized request sent to the reply backend.
type ChatRequest struct {
	UserID  string         `json:"user_id"`
	TurnID  string         `json:"turn_id,omitempty"`
	Message string         `json:"message"`
	Source  string         `json:"source,omitempty"`
	Context []memory.Entry `json:"context,omitempty"`
}

// ChatResponse carries the generated reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// StatusError reports a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend http status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend http status %d: %s", e.StatusCode, e.Body)
}

// AsStatusError unwraps a *StatusError from err.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Adapter bridges the relay with whatever generates replies.
type Adapter interface {
	Name() string
	Reply(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ClearMemory asks the backend to drop any state it keeps for the user.
	ClearMemory(ctx context.Context, userID string) error
}

// Config controls adapter construction.
type Config struct {
	Mode         string
	ChatURL      string
	ClearURL     string
	Source       string
	Timeout      time.Duration
	ClearTimeout time.Duration
	MaxRetries   int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	Persona       string
}

func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoAdapter(cfg), nil
	case "http":
		if strings.TrimSpace(cfg.ChatURL) == "" {
			return nil, errors.New("backend chat url is required for http mode")
		}
		return newHTTPAdapterFromConfig(cfg), nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, errors.New("openai api key is required for openai mode")
		}
		return newOpenAIAdapterFromConfig(cfg), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported backend adapter mode %q", cfg.Mode)
	}
}

func newAutoAdapter(cfg Config) Adapter {
	var primary Adapter
	if strings.TrimSpace(cfg.ChatURL) != "" {
		primary = newHTTPAdapterFromConfig(cfg)
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		oa := newOpenAIAdapterFromConfig(cfg)
		if primary == nil {
			return oa
		}
		// The configured chat service stays authoritative; OpenAI only covers its outages.
		return NewFallbackAdapter(primary, oa)
	}
	if primary != nil {
		return primary
	}
	return NewMockAdapter()
}

func newHTTPAdapterFromConfig(cfg Config) *HTTPAdapter {
	return NewHTTPAdapter(HTTPOptions{
		ChatURL:      cfg.ChatURL,
		ClearURL:     cfg.ClearURL,
		Source:       cfg.Source,
		Timeout:      cfg.Timeout,
		ClearTimeout: cfg.ClearTimeout,
		MaxRetries:   cfg.MaxRetries,
	})
}

func newOpenAIAdapterFromConfig(cfg Config) *OpenAIAdapter {
	return NewOpenAIAdapter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Persona)
}
