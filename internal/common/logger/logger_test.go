package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level    string
		format   string
		expected zapcore.Level
	}{
		{"debug", "json", zapcore.DebugLevel},
		{"warn", "console", zapcore.WarnLevel},
		{"error", "json", zapcore.ErrorLevel},
		{"bogus", "console", zapcore.InfoLevel},
		{"", "json", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			l := New(tt.level, tt.format, "stderr")
			assert.True(t, l.Core().Enabled(tt.expected))
			if tt.expected > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.expected-1))
			}
		})
	}
}

func TestZapAdapter_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).
		WithFields(map[string]interface{}{"taskType": "openai-route"}).
		WithError(errors.New("upstream down"))

	log.Warn("job degraded", map[string]interface{}{
		"route": "/v1/models",
		"cause": errors.New("dial tcp: refused"),
	})

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "openai-route", fields["taskType"])
	assert.Equal(t, "upstream down", fields["error"])
	assert.Equal(t, "/v1/models", fields["route"])
	assert.Equal(t, "dial tcp: refused", fields["cause"])
}

func TestNoOpLogger_DoesNotPanic(t *testing.T) {
	log := NewNoOpLogger().With(map[string]interface{}{"k": "v"})
	log.Debug("debug", nil)
	log.Info("info", nil)
	log.Error("error", map[string]interface{}{})
}
