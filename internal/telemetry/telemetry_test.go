package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fortemi/fortemi-sub011/internal/config"
)

func TestNewDisabledReturnsUsableNoOpTelemetry(t *testing.T) {
	cfg := &config.ObservabilityConfig{EnableTelemetry: false}

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.Nil(t, tel.LoggerProvider())

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestShutdownOnNilTelemetryIsNoOp(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Nil(t, tel.LoggerProvider())
	assert.NotPanics(t, func() { tel.SetLoggerProvider(nil) })
}
