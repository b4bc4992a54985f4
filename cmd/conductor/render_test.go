package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/conductor/internal/intent"
)

func TestParseTasks(t *testing.T) {
	got := parseTasks([]string{"Weekly report:paused", "Landing page", " :running", ""})
	assert.Equal(t, []intent.ActiveTask{
		{Title: "Weekly report", Status: "paused"},
		{Title: "Landing page", Status: "running"},
	}, got)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "wrote 10 bytes to a.md", firstLine("  wrote 10 bytes to a.md\nmore"))

	long := firstLine(strings.Repeat("x", 120))
	assert.Equal(t, strings.Repeat("x", 77)+"...", long)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]string{"html": "<h1>"}))
	assert.Equal(t, "{\n  \"html\": \"<h1>\"\n}\n", buf.String())
}
