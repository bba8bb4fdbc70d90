package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/nova-relay/internal/memory"
)

// MockAdapter provides deterministic local replies when no backend is configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Name() string { return "mock" }

func (a *MockAdapter) Reply(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	select {
	case <-ctx.Done():
		return ChatResponse{}, ctx.Err()
	default:
	}
	return ChatResponse{Reply: buildMockReply(req)}, nil
}

func (a *MockAdapter) ClearMemory(ctx context.Context, _ string) error {
	return ctx.Err()
}

func buildMockReply(req ChatRequest) string {
	base := strings.TrimSpace(req.Message)
	if base == "" {
		base = "I am listening."
	}

	// The newest context entry is normally the message itself; look one further back.
	var earlier *memory.Entry
	for i := len(req.Context) - 1; i >= 0; i-- {
		e := req.Context[i]
		if e.Role == memory.RoleUser && strings.TrimSpace(e.Content) == base {
			continue
		}
		if strings.TrimSpace(e.Content) != "" {
			earlier = &e
		}
		break
	}
	if earlier == nil {
		return fmt.Sprintf("I heard you: %s", base)
	}
	return fmt.Sprintf("I heard you: %s\nI also remember: %s", base, strings.TrimSpace(earlier.Content))
}
