package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerTo_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, false)

	Info("chat handled", "safety_notes", "no_context")
	Debug("hidden at info level")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "chat handled", entry["msg"])
	assert.Equal(t, "no_context", entry["safety_notes"])
}
