package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/georgemunganga/shopledger/internal/platform/config"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&config.Config{Env: "production", LogLevel: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger, err := New(&config.Config{Env: "production", LogLevel: "warn"}, core)
	require.NoError(t, err)

	logger.Info("ticket committed")
	logger.Warn("scope violation", zap.String("operation", "list_stock"))

	entries := logs.All()
	require.Len(t, entries, 1, "the process level still applies to extra cores")
	assert.Equal(t, "scope violation", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, config.ServiceName, fields["service"])
	assert.Equal(t, "list_stock", fields["operation"])
}
