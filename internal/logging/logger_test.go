package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_ConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: "warn", Console: true, NoColor: true, Output: &buf})
	require.NoError(t, err)

	l.Info().Msg("quiet")
	l.Warn().Msg("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "conductor.log")
	l, err := New(&Config{Level: "debug", File: path})
	require.NoError(t, err)

	rl := Component(l.Logger, "router")
	rl.Debug().Str("model", "ollama/llama3").Msg("dispatch")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"router"`)
	assert.Contains(t, string(data), `"model":"ollama/llama3"`)
}

func TestNew_NoSinksDiscards(t *testing.T) {
	l, err := New(&Config{Level: "debug"})
	require.NoError(t, err)
	l.Info().Msg("nowhere")
	assert.NoError(t, l.Close())
}

func TestNilLoggerClose(t *testing.T) {
	var l *Logger
	assert.NoError(t, l.Close())
}
