package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"invalid level defaults to info", "loud", zerolog.InfoLevel},
		{"empty level defaults to info", "", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewWithWriter(&bytes.Buffer{}, "svc", tt.level, false)
			assert.Equal(t, tt.want, l.GetLevel())
		})
	}
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "portfolio-valuation", "info", false)

	l.Debug().Msg("hidden")
	l.Info().Int64("portfolio_id", 7).Msg("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "portfolio-valuation", entry["service"])
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, float64(7), entry["portfolio_id"])
	assert.Contains(t, entry, "time")
}
