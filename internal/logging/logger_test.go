package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsAndAttributes(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "debug", "text")
	require.NoError(t, err)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.With("event", "ev-1").Warn(ctx, "wrn", "b", 2)

	out := buf.String()
	for _, want := range []string{"level=DEBUG", "msg=dbg", "a=1", "level=WARN", "event=ev-1", "b=2"} {
		assert.Contains(t, out, want)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn", "text")
	require.NoError(t, err)
	log.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "info", "json")
	require.NoError(t, err)
	log.Info(context.Background(), "hello", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])
}

func TestRejectsUnknownSettings(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
