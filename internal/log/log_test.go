package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilteringHandler(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(&filteringHandler{underlying: slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})})

	logger.Debug("no section")
	assert.Empty(t, buf.String())

	logger.With("section", "unrelated").Debug("unrelated section")
	assert.Empty(t, buf.String())

	logger.With("section", "flow").With("var", "$x").Debug("merged")
	assert.Contains(t, buf.String(), "merged")
	assert.Contains(t, buf.String(), "var=$x")
	buf.Reset()

	logger.Debug("inline", "section", "analyzer.loop")
	assert.Contains(t, buf.String(), "inline")
	buf.Reset()

	logger.Warn("always")
	assert.Contains(t, buf.String(), "always")
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(level.Level())
	SetLevel(slog.LevelDebug)
	assert.True(t, DefaultLogger.Enabled(context.Background(), slog.LevelDebug))
	SetLevel(slog.LevelError)
	assert.False(t, DefaultLogger.Enabled(context.Background(), slog.LevelWarn))
}
