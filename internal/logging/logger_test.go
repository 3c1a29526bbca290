package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocmaLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Format: "text", Output: &buf})
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, nil, "warn message")
	logger.Error(ctx, errors.New("boom"), "error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "boom")
}

func TestDocmaLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf}).
		WithComponent("compiler").
		With("template", "demo")

	logger.Info(context.Background(), "compiled", "files", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "compiled", rec["msg"])
	assert.Equal(t, "compiler", rec["component"])
	assert.Equal(t, "demo", rec["template"])
	assert.EqualValues(t, 3, rec["files"])
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	child := rec.WithComponent("render").With("doc", "a.html")

	child.Info(context.Background(), "Embedded 2 images out of 3")
	rec.Warn(context.Background(), nil, "deprecated")

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "render", entries[0].Component)
	assert.Equal(t, []any{"doc", "a.html"}, entries[0].Fields)
	assert.Equal(t, 1, rec.Count(LevelWarn, "deprecated"))
	assert.Contains(t, rec.Text(), "Embedded 2 images out of 3")
}

func TestSetDefault(t *testing.T) {
	rec := NewRecorder()
	prev := SetDefault(rec)
	t.Cleanup(func() { SetDefault(prev) })

	Default().Info(context.Background(), "hello")
	assert.Equal(t, 1, rec.Count(LevelInfo, "hello"))
}
