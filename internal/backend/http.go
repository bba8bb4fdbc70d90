package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/nova-relay/internal/reliability"
)

const (
	defaultChatTimeout  = 30 * time.Second
	defaultClearTimeout = 10 * time.Second
	retryBaseDelay      = 250 * time.Millisecond
	retryMaxDelay       = 2 * time.Second
)

// HTTPOptions configures an HTTPAdapter.
type HTTPOptions struct {
	ChatURL      string
	ClearURL     string
	Source       string
	Timeout      time.Duration
	ClearTimeout time.Duration
	MaxRetries   int
}

// HTTPAdapter forwards chat turns to a JSON HTTP reply service.
type HTTPAdapter struct {
	opts   HTTPOptions
	client *http.Client
}

func NewHTTPAdapter(opts HTTPOptions) *HTTPAdapter {
	opts.ChatURL = strings.TrimSpace(opts.ChatURL)
	opts.ClearURL = strings.TrimSpace(opts.ClearURL)
	if opts.Timeout <= 0 {
		opts.Timeout = defaultChatTimeout
	}
	if opts.ClearTimeout <= 0 {
		opts.ClearTimeout = defaultClearTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &HTTPAdapter{
		opts:   opts,
		client: &http.Client{},
	}
}

func (a *HTTPAdapter) Name() string { return "http" }

func (a *HTTPAdapter) Reply(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if req.Source == "" {
		req.Source = a.opts.Source
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, reliability.ExponentialBackoff(attempt-1, retryBaseDelay, retryMaxDelay)); err != nil {
				return ChatResponse{}, err
			}
		}
		body, err := a.post(ctx, a.opts.ChatURL, a.opts.Timeout, payload)
		if err == nil {
			return ChatResponse{Reply: parseReply(body)}, nil
		}
		lastErr = err
		se, ok := AsStatusError(err)
		if !ok || !reliability.IsRetryableHTTPStatus(se.StatusCode) {
			break
		}
	}
	return ChatResponse{}, lastErr
}

func (a *HTTPAdapter) ClearMemory(ctx context.Context, userID string) error {
	if a.opts.ClearURL == "" {
		return nil
	}
	payload, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return fmt.Errorf("marshal clear request: %w", err)
	}
	_, err = a.post(ctx, a.opts.ClearURL, a.opts.ClearTimeout, payload)
	return err
}

func (a *HTTPAdapter) post(ctx context.Context, url string, timeout time.Duration, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, &StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// parseReply accepts a JSON object with a reply-ish field or a plain text body.
func parseReply(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return strings.TrimSpace(string(body))
	}
	return strings.TrimSpace(extractText(obj))
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"reply", "text", "message", "output"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
