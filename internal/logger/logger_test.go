package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestComponentAndSessionFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", false)
	t.Cleanup(func() { Init("info", false) })

	WithSession("pipeline", "abc").Debug().Int("bodies", 2).Msg("frame")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "abc", entry["session"])
	assert.Equal(t, "frame", entry["message"])
	assert.EqualValues(t, 2, entry["bodies"])
	assert.Contains(t, entry, "time")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", false)
	t.Cleanup(func() { Init("info", false) })

	WithComponent("transmit").Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	WithComponent("transmit").Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
