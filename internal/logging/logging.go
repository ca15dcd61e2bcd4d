// Package logging configures the structured logger.
package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Config is embedded in the CLI with the "log-" prefix.
type Config struct {
	Level slog.Level `help:"Minimum level to log." default:"info"`
	JSON  bool       `help:"Log as JSON."`
}

// New creates a logger writing to w.
func New(w io.Writer, config Config) *slog.Logger {
	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: config.Level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{Level: config.Level, TimeFormat: time.Kitchen})
	}
	return slog.New(handler)
}

// Legacy creates a [log.Logger] that logs each line written to it to logger at level.
func Legacy(logger *slog.Logger, level slog.Level) *log.Logger {
	return log.New(&slogWriter{logger: logger, level: level}, "", 0)
}

type slogWriter struct {
	mu     sync.Mutex
	logger *slog.Logger
	level  slog.Level
	// Incomplete trailing line.
	buffer string
}

func (w *slogWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer += string(p)
	if i := strings.LastIndexByte(w.buffer, '\n'); i != -1 {
		for line := range strings.SplitSeq(w.buffer[:i], "\n") {
			w.logger.Log(context.Background(), w.level, line)
		}
		w.buffer = w.buffer[i+1:]
	}
	return len(p), nil
}
