package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func textLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, Config{Level: slog.LevelWarn, JSON: true})
	logger.Info("hidden")
	logger.Warn("shown", "file", "di_gen.go")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"file":"di_gen.go"`)

	buf.Reset()
	logger = New(buf, Config{Level: slog.LevelDebug})
	logger.Debug("Loading packages")
	assert.Contains(t, buf.String(), "Loading packages")
}

func TestLegacy(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		input string
		lines int
	}{
		{"SingleLine", slog.LevelInfo, "Hello World", 1},
		{"WithNewlines", slog.LevelWarn, "Line with\nnewlines", 2},
		{"Debug", slog.LevelDebug, "go list -e", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			Legacy(textLogger(buf), tt.level).Print(tt.input)
			output := strings.TrimSpace(buf.String())
			assert.Equal(t, tt.lines, len(strings.Split(output, "\n")), output)
			assert.Contains(t, output, "level="+tt.level.String())
		})
	}
}

func TestLegacyPrintf(t *testing.T) {
	buf := &bytes.Buffer{}
	logf := Legacy(textLogger(buf), slog.LevelDebug).Printf
	logf("%d packages loaded in %s", 3, "1s")
	assert.Contains(t, buf.String(), `msg="3 packages loaded in 1s"`)
}

func TestLegacyWriterBuffering(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := Legacy(textLogger(buf), slog.LevelInfo).Writer()

	_, _ = writer.Write([]byte("Part 1 "))
	_, _ = writer.Write([]byte("Part 2 "))
	assert.Equal(t, "", buf.String(), "should buffer without newline")

	_, _ = writer.Write([]byte("Part 3\n"))
	assert.Contains(t, buf.String(), "Part 1 Part 2 Part 3")

	buf.Reset()
	_, _ = writer.Write([]byte("Line 1\nLine 2\nLine 3\n"))
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(buf.String()), "\n")))
}
