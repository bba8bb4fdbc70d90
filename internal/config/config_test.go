package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	unsetCoreEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MemoryMaxMessages != 10 {
		t.Fatalf("MemoryMaxMessages = %d, want 10", cfg.MemoryMaxMessages)
	}
	if cfg.MemoryMaxAge() != 30*time.Minute {
		t.Fatalf("MemoryMaxAge() = %v, want 30m", cfg.MemoryMaxAge())
	}
	if cfg.BackendAdapterMode != "auto" {
		t.Fatalf("BackendAdapterMode = %q, want %q", cfg.BackendAdapterMode, "auto")
	}
	if cfg.BackendChatURL != "" {
		t.Fatalf("BackendChatURL = %q, want empty default", cfg.BackendChatURL)
	}
	if cfg.TranscriptDir != "nova-memory/conversations" {
		t.Fatalf("TranscriptDir = %q, want default", cfg.TranscriptDir)
	}
	if cfg.LogFile != "nova-relay.log" || cfg.LogLevel != "debug" {
		t.Fatalf("log settings = %q/%q, want nova-relay.log/debug", cfg.LogFile, cfg.LogLevel)
	}
	if cfg.BackendTimeout != 30*time.Second || cfg.BackendClearTimeout != 10*time.Second {
		t.Fatalf("backend timeouts = %v/%v, want 30s/10s", cfg.BackendTimeout, cfg.BackendClearTimeout)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	unsetCoreEnv(t)
	t.Setenv("MEMORY_MAX_MESSAGES", "3")
	t.Setenv("MEMORY_MAX_AGE_MINUTES", "1.5")
	t.Setenv("BACKEND_CHAT_URL", " http://devshell:5001/chat-mistral ")
	t.Setenv("TRANSCRIPT_REDACT_PII", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MemoryMaxMessages != 3 {
		t.Fatalf("MemoryMaxMessages = %d, want 3", cfg.MemoryMaxMessages)
	}
	if cfg.MemoryMaxAge() != 90*time.Second {
		t.Fatalf("MemoryMaxAge() = %v, want 90s", cfg.MemoryMaxAge())
	}
	if cfg.BackendChatURL != "http://devshell:5001/chat-mistral" {
		t.Fatalf("BackendChatURL = %q, want trimmed explicit value", cfg.BackendChatURL)
	}
	if !cfg.TranscriptRedactPII {
		t.Fatalf("TranscriptRedactPII = false, want true")
	}
}

func TestLoadEmptyValuesDisableSinks(t *testing.T) {
	unsetCoreEnv(t)
	t.Setenv("LOG_FILE", "")
	t.Setenv("TRANSCRIPT_DIR", " ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogFile != "" || cfg.TranscriptDir != "" {
		t.Fatalf("sinks = %q/%q, want both disabled", cfg.LogFile, cfg.TranscriptDir)
	}
}

func TestLoadRejectsInvalidMemorySettings(t *testing.T) {
	cases := map[string]string{
		"MEMORY_MAX_MESSAGES":    "0",
		"MEMORY_MAX_AGE_MINUTES": "-1",
		"BACKEND_MAX_RETRIES":    "many",
		"APP_ALLOW_ANY_ORIGIN":   "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			unsetCoreEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q expected error", key, value)
			}
		})
	}
}

func unsetCoreEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"LOG_LEVEL",
		"LOG_FILE",
		"BOT_NAME",
		"MEMORY_MAX_MESSAGES",
		"MEMORY_MAX_AGE_MINUTES",
		"BACKEND_ADAPTER_MODE",
		"BACKEND_CHAT_URL",
		"BACKEND_CLEAR_URL",
		"BACKEND_SOURCE",
		"BACKEND_TIMEOUT",
		"BACKEND_CLEAR_TIMEOUT",
		"BACKEND_MAX_RETRIES",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_MODEL",
		"TRANSCRIPT_DIR",
		"TRANSCRIPT_REDACT_PII",
		"DATABASE_URL",
	}
	for _, key := range keys {
		// Setenv registers restoration of the original value; Unsetenv then removes it.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
