package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapWrapper_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"component": "reconciler"})

	log.Debug("debug message", nil)
	log.Warn("customer not found", map[string]interface{}{
		"customerId": "cus_123",
		"error":      errors.New("no rows"),
	})

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)

	ctx := entries[1].ContextMap()
	assert.Equal(t, "reconciler", ctx["component"])
	assert.Equal(t, "cus_123", ctx["customerId"])
	assert.Equal(t, "no rows", ctx["error"])
}

func TestZapWrapper_WithError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapAdapter(zap.New(core)).WithError(errors.New("boom"))

	log.Error("failed", nil)

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestNew_LevelParsing(t *testing.T) {
	assert.True(t, New("debug", "console").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn", "json").Core().Enabled(zapcore.InfoLevel))
	assert.False(t, New("unknown", "json").Core().Enabled(zapcore.DebugLevel))
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.With(map[string]interface{}{"k": "v"}).Info("ignored", nil)
	})
}
