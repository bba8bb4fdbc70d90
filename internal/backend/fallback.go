package backend

import (
	"context"
	"errors"
	"fmt"
)

// FallbackAdapter attempts a primary adapter first and falls back on error.
type FallbackAdapter struct {
	primary  Adapter
	fallback Adapter
}

func NewFallbackAdapter(primary Adapter, fallback Adapter) *FallbackAdapter {
	return &FallbackAdapter{
		primary:  primary,
		fallback: fallback,
	}
}

// Primary returns the preferred adapter used before fallback.
func (a *FallbackAdapter) Primary() Adapter {
	if a == nil {
		return nil
	}
	return a.primary
}

// Secondary returns the fallback adapter.
func (a *FallbackAdapter) Secondary() Adapter {
	if a == nil {
		return nil
	}
	return a.fallback
}

func (a *FallbackAdapter) Name() string {
	if a == nil || a.primary == nil {
		return "fallback"
	}
	if a.fallback == nil {
		return a.primary.Name()
	}
	return a.primary.Name() + "+" + a.fallback.Name()
}

func (a *FallbackAdapter) Reply(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if a == nil || a.primary == nil {
		if a != nil && a.fallback != nil {
			return a.fallback.Reply(ctx, req)
		}
		return ChatResponse{}, fmt.Errorf("fallback adapter misconfigured")
	}

	resp, err := a.primary.Reply(ctx, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil) {
		return ChatResponse{}, err
	}
	if a.fallback == nil {
		return ChatResponse{}, err
	}
	fallbackResp, fallbackErr := a.fallback.Reply(ctx, req)
	if fallbackErr != nil {
		return ChatResponse{}, fmt.Errorf("primary adapter error: %w; fallback adapter error: %v", err, fallbackErr)
	}
	return fallbackResp, nil
}

// ClearMemory clears both sides; only the primary's failure is reported.
func (a *FallbackAdapter) ClearMemory(ctx context.Context, userID string) error {
	if a == nil {
		return fmt.Errorf("fallback adapter misconfigured")
	}
	var err error
	if a.primary != nil {
		err = a.primary.ClearMemory(ctx, userID)
	}
	if a.fallback != nil {
		_ = a.fallback.ClearMemory(ctx, userID)
	}
	return err
}
