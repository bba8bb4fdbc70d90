package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/nova-relay/internal/bot"
	"github.com/ent0n29/nova-relay/internal/config"
	"github.com/ent0n29/nova-relay/internal/logging"
	"github.com/ent0n29/nova-relay/internal/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		MetricsNamespace:    fmt.Sprintf("test_app_%d", time.Now().UnixNano()),
		BotName:             "Nova",
		MemoryMaxMessages:   2,
		MemoryMaxAgeMinutes: 30,
		BackendAdapterMode:  "mock",
		BackendSource:       "discord",
		BackendTimeout:      time.Second,
		BackendClearTimeout: time.Second,
		TranscriptDir:       t.TempDir(),
	}
}

func TestBuildWiresMockRelay(t *testing.T) {
	res, err := Build(context.Background(), testConfig(t), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.Equal(t, "mock", res.Backend.Name())
	assert.Equal(t, 2, res.Memory.MaxMessages())
	assert.Equal(t, 30*time.Minute, res.Memory.MaxAge())

	reply, err := res.Handler.HandleMessage(context.Background(), bot.Message{UserID: "u1", Author: "sam", Content: "hi", Direct: true})
	require.NoError(t, err)
	assert.Equal(t, "I heard you: hi", reply.Text)

	// A third turn pushes the buffer past capacity.
	res.Memory.AddMessage("u1", memory.RoleUser, "again")
	assert.Equal(t, 2, res.Memory.Len("u1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(res.Metrics.MemoryEvictions))
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MemoryMaxMessages = 0
	_, err := Build(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
}

func TestBuildRejectsHTTPModeWithoutURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.BackendAdapterMode = "http"
	_, err := Build(context.Background(), cfg, logging.Discard())
	require.ErrorContains(t, err, "backend adapter init failed")
}
