package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Output.Stderr)

	cfg, err = FromSettings(config.LoggingConfig{Level: "trace"})
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)

	_, err = FromSettings(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = FromSettings(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
	assert.NoError(t, logger.Sync())
}

func TestNewLogger_NoOutputs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Stderr = false
	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	ctx := WithInvocationID(context.Background(), "inv-1")
	ctx = WithRequestID(ctx, "req-9")
	ctx = WithTool(ctx, "reason")

	logger := NewTestLogger()
	logger.Info(ctx, "stage finished", zap.Int("stage", 2))

	logger.AssertLogged(t, zapcore.InfoLevel, "stage finished")
	logger.AssertField(t, "stage finished", "invocation.id", "inv-1")
	logger.AssertField(t, "stage finished", "request.id", "req-9")
	logger.AssertField(t, "stage finished", "tool", "reason")
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	logger := NewTestLogger()
	ctx := WithLogger(context.Background(), logger.Logger)
	FromContext(ctx).Warn(ctx, "from context")
	logger.AssertLogged(t, zapcore.WarnLevel, "from context")
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "calling provider"}, []zapcore.Field{
		zap.String("api_key", "sk-abcdefghijklmnopqrstuvwx"),
		zap.String("header", "Bearer abc.def"),
		zap.String("domain", "engineering"),
	})
	require.NoError(t, err)
	out := buf.String()

	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuvwx")
	assert.NotContains(t, out, "abc.def")
	assert.Contains(t, out, `"domain":"engineering"`)
	assert.Equal(t, 2, strings.Count(out, "[REDACTED]"))
}

func TestSecretField(t *testing.T) {
	f := Secret("api_key", config.Secret("12345"))
	assert.Equal(t, "[REDACTED:5]", f.String)
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	lvl, err = LevelFromString("nope")
	assert.Error(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)
}
