package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, Operation(ctx))
	assert.Empty(t, CallID(ctx))
	assert.Empty(t, Step(ctx))

	ctx = WithOperation(ctx, "signup")
	ctx = WithCallID(ctx, "c-1")
	ctx = WithStep(ctx, "createUser")

	assert.Equal(t, "signup", Operation(ctx))
	assert.Equal(t, "c-1", CallID(ctx))
	assert.Equal(t, "createUser", Step(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithCallID(WithOperation(context.Background(), "signup"), "c-1")
	LogWith(ctx, logger).Info("step complete")

	out := buf.String()
	assert.Contains(t, out, "operation=signup")
	assert.Contains(t, out, "call_id=c-1")
	assert.NotContains(t, out, "step=")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithStep(WithOperation(context.Background(), "signup"), "sendEmail")
	logger.InfoContext(ctx, "dispatched")

	out := buf.String()
	require.Contains(t, out, `"operation":"signup"`)
	require.Contains(t, out, `"step":"sendEmail"`)
}
