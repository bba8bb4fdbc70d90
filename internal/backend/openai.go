package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ent0n29/nova-relay/internal/memory"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIAdapter generates replies through an OpenAI-compatible chat completions API.
type OpenAIAdapter struct {
	client  *openai.Client
	model   string
	persona string
}

func NewOpenAIAdapter(apiKey, baseURL, model, persona string) *OpenAIAdapter {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if u := strings.TrimSpace(baseURL); u != "" {
		cfg.BaseURL = u
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIAdapter{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		persona: strings.TrimSpace(persona),
	}
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) Reply(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: a.buildMessages(req),
	})
	if err != nil {
		if code := openAIStatusCode(err); code != 0 {
			return ChatResponse{}, &StatusError{StatusCode: code, Body: err.Error()}
		}
		return ChatResponse{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, nil
	}
	return ChatResponse{Reply: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

// ClearMemory is a no-op: completions are stateless and all context comes from the relay.
func (a *OpenAIAdapter) ClearMemory(context.Context, string) error { return nil }

func (a *OpenAIAdapter) buildMessages(req ChatRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Context)+2)
	if a.persona != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: a.persona})
	}
	for _, e := range req.Context {
		role := openai.ChatMessageRoleUser
		if e.Role == memory.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: e.Content})
	}

	n := len(req.Context)
	if n == 0 || req.Context[n-1].Role != memory.RoleUser || req.Context[n-1].Content != req.Message {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})
	}
	return msgs
}

func openAIStatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
