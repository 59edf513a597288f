package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, ok := parseLevel("DEBUG")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, ok = parseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestFromContext_RequestID(t *testing.T) {
	prev := L
	t.Cleanup(func() {
		L = prev
		slog.SetDefault(prev)
	})

	var buf bytes.Buffer
	initLogger(&buf, "info")
	buf.Reset()

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	FromContext(ctx).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["requestID"])
	assert.Equal(t, "hello", entry["msg"])

	assert.Same(t, L, FromContext(context.Background()))
}
