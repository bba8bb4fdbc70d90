package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kataras/golog"

	"github.com/ent0n29/nova-relay/internal/backend"
	"github.com/ent0n29/nova-relay/internal/bot"
	"github.com/ent0n29/nova-relay/internal/config"
	"github.com/ent0n29/nova-relay/internal/httpapi"
	"github.com/ent0n29/nova-relay/internal/memory"
	"github.com/ent0n29/nova-relay/internal/observability"
	"github.com/ent0n29/nova-relay/internal/transcript"
)

type BuildResult struct {
	Config      config.Config
	API         *httpapi.Server
	Handler     *bot.Handler
	Memory      *memory.ConversationMemory
	Backend     backend.Adapter
	Transcripts transcript.Store
	Metrics     *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB pool).
	Cleanup func() error
}

// Build wires the relay from configuration. The metrics namespace must be unique per process
// since instruments register with the default Prometheus registry.
func Build(ctx context.Context, cfg config.Config, logger *golog.Logger) (*BuildResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	mem := memory.New(memory.Config{
		MaxMessages: cfg.MemoryMaxMessages,
		MaxAge:      cfg.MemoryMaxAge(),
		OnEvict: func(string, memory.Turn) {
			metrics.MemoryEvictions.Inc()
		},
	})

	transcripts, err := transcript.NewStore(ctx, transcript.Config{
		Dir:         cfg.TranscriptDir,
		DatabaseURL: cfg.DatabaseURL,
		RedactPII:   cfg.TranscriptRedactPII,
	})
	if err != nil {
		return nil, fmt.Errorf("transcript store init failed: %w", err)
	}

	adapter, err := backend.NewAdapter(backend.Config{
		Mode:          cfg.BackendAdapterMode,
		ChatURL:       cfg.BackendChatURL,
		ClearURL:      cfg.BackendClearURL,
		Source:        cfg.BackendSource,
		Timeout:       cfg.BackendTimeout,
		ClearTimeout:  cfg.BackendClearTimeout,
		MaxRetries:    cfg.BackendMaxRetries,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		Persona:       persona(cfg.BotName),
	})
	if err != nil {
		_ = transcripts.Close()
		return nil, fmt.Errorf("backend adapter init failed: %w", err)
	}
	logger.Infof("reply backend: %s", adapter.Name())

	handler := bot.NewHandler(mem, adapter, transcripts, metrics, logger, bot.Options{
		BotName: cfg.BotName,
		Source:  cfg.BackendSource,
	})
	api := httpapi.New(cfg, handler, metrics, logger)

	cleanup := func() error {
		var errs []error
		if err := transcripts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("transcripts: %w", err))
		}
		return errors.Join(errs...)
	}

	return &BuildResult{
		Config:      cfg,
		API:         api,
		Handler:     handler,
		Memory:      mem,
		Backend:     adapter,
		Transcripts: transcripts,
		Metrics:     metrics,
		Cleanup:     cleanup,
	}, nil
}

func persona(botName string) string {
	return fmt.Sprintf("You are %s, a helpful assistant chatting with one person in a direct message. Keep replies short and conversational.", botName)
}
