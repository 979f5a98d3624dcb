package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/storefront/analytics/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
	}{
		{"console format", config.LogConfig{Level: "debug", Format: "console", Output: "stdout"}},
		{"json format", config.LogConfig{Level: "info", Format: "json", Output: "stderr"}},
		{"unknown level falls back to info", config.LogConfig{Level: "nope", Format: "json", Output: "stdout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, log)
		})
	}
}

func TestNewForEnvironment(t *testing.T) {
	prod, err := NewForEnvironment("production")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))

	dev, err := NewForEnvironment("development")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARNING"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("garbage"))
}

func TestContextRoundTrip(t *testing.T) {
	log := zap.NewExample()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))

	// Missing logger returns a usable no-op
	assert.NotNil(t, FromContext(context.Background()))
}
