package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/assessment-engine/internal/config"
	"github.com/phrazzld/assessment-engine/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.ParseLevel(tt.input))
		})
	}
}

func TestSetupWithWriter_JSONOutputAndLevel(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	var buf bytes.Buffer
	l := logger.SetupWithWriter(config.ServerConfig{LogLevel: "warn"}, &buf)

	l.Info("hidden")
	l.Warn("visible", "task_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "info should be filtered at warn level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "abc", entry["task_id"])
	assert.Same(t, l, slog.Default(), "Setup should install the default logger")
}

func TestContextRoundTrip(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	scoped := slog.New(slog.NewTextHandler(io.Discard, nil)).With("component", "test")

	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))

	ctx := logger.WithContext(context.Background(), scoped)
	assert.Same(t, scoped, logger.FromContextOrDefault(ctx, fallback))
	assert.Same(t, scoped, logger.FromContext(ctx))
}
