package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTraceID(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithToolName(ctx, "gemini")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "gemini", GetToolName(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetToolName(ctx))
	assert.Empty(t, GetRequestID(ctx))
}

func TestFromContextAndNewContext(t *testing.T) {
	src := NewContext(context.Background(), &TraceContext{
		TraceID:  "trace-2",
		ToolName: "claude",
	})

	tc := FromContext(src)
	assert.Equal(t, "trace-2", tc.TraceID)
	assert.Equal(t, "claude", tc.ToolName)
	assert.Empty(t, tc.RequestID)
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	assert.NotEmpty(t, GetTraceID(ctx))
}

func TestMergeContextNoOverwrite(t *testing.T) {
	target := WithTraceID(context.Background(), "keep-me")
	source := WithTraceID(context.Background(), "ignore-me")
	source = WithToolName(source, "gemini")

	merged := MergeContext(target, source)
	assert.Equal(t, "keep-me", GetTraceID(merged))
	assert.Equal(t, "gemini", GetToolName(merged))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-3")
	ctx = WithToolName(ctx, "gemini")

	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("hello")

	out := buf.String()
	require.True(t, strings.Contains(out, "trace-3"), out)
	assert.Contains(t, out, `"tool":"gemini"`)
}

func TestLoggerFromContextEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggerFromContext(context.Background(), zerolog.New(&buf))
	logger.Info().Msg("hello")
	assert.NotContains(t, buf.String(), "trace_id")
}
