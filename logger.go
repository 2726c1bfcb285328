/*
File: logger.go
Version: 2.0.0
Description: Leveled log/slog logging with console and file outputs.
             Records are handed to a buffered channel and written by a single goroutine so
             request paths never block on log I/O.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Cached level for fast checks
var currentLevel = slog.LevelInfo

var (
	logBuffer  chan slog.Record
	logWg      sync.WaitGroup
	logDone    chan struct{}
	logFile    io.Closer
	asyncReady bool
)

const logBufferSize = 16384

// InitLogger replaces the bootstrap logger with the configured outputs.
func InitLogger(cfg LoggingConfig) error {
	lvl := parseLogLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: lvl}
	newHandler := func(w io.Writer) slog.Handler {
		if strings.EqualFold(cfg.Format, "json") {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}

	var handlers []slog.Handler
	for _, output := range cfg.Outputs {
		switch strings.ToLower(output) {
		case "console":
			handlers = append(handlers, newHandler(os.Stderr))
		case "file":
			if cfg.File.Path == "" {
				return errors.New("file logging enabled but no path specified")
			}
			perm := os.FileMode(0644)
			if cfg.File.Permissions > 0 {
				perm = os.FileMode(cfg.File.Permissions)
			}
			f, err := os.OpenFile(cfg.File.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, perm)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			logFile = f
			handlers = append(handlers, newHandler(f))
		default:
			return fmt.Errorf("unknown log output %q", output)
		}
	}
	if len(handlers) == 0 {
		handlers = append(handlers, newHandler(os.Stderr))
	}

	var final slog.Handler = handlers[0]
	if len(handlers) > 1 {
		final = &MultiHandler{handlers: handlers}
	}

	logBuffer = make(chan slog.Record, logBufferSize)
	logDone = make(chan struct{})
	logWg.Add(1)
	go func() {
		defer logWg.Done()
		processLogs(final)
	}()
	asyncReady = true
	currentLevel = lvl

	logger = slog.New(&AsyncHandler{handler: final, buffer: logBuffer})
	slog.SetDefault(logger)
	return nil
}

func processLogs(h slog.Handler) {
	ctx := context.Background()
	for {
		select {
		case record := <-logBuffer:
			_ = h.Handle(ctx, record)
		case <-logDone:
			for {
				select {
				case record := <-logBuffer:
					_ = h.Handle(ctx, record)
				default:
					return
				}
			}
		}
	}
}

// ShutdownLogger drains buffered records and closes the log file.
func ShutdownLogger() {
	if !asyncReady {
		return
	}
	asyncReady = false
	close(logDone)
	logWg.Wait()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: currentLevel}))
}

// AsyncHandler drops records when the buffer is full.
type AsyncHandler struct {
	handler slog.Handler
	buffer  chan slog.Record
}

func (h *AsyncHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.handler.Enabled(ctx, l)
}

func (h *AsyncHandler) Handle(_ context.Context, r slog.Record) error {
	select {
	case h.buffer <- r.Clone():
	default:
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{handler: h.handler.WithAttrs(attrs), buffer: h.buffer}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{handler: h.handler.WithGroup(name), buffer: h.buffer}
}

type MultiHandler struct {
	handlers []slog.Handler
}

func (m *MultiHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func IsDebugEnabled() bool {
	return currentLevel <= slog.LevelDebug
}

// --- Printf-style Wrappers ---

func logWithCaller(level slog.Level, format string, v ...any) {
	if !logger.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, fmt.Sprintf(format, v...), pcs[0])
	_ = logger.Handler().Handle(context.Background(), r)
}

func LogDebug(format string, v ...any) { logWithCaller(slog.LevelDebug, format, v...) }
func LogInfo(format string, v ...any)  { logWithCaller(slog.LevelInfo, format, v...) }
func LogWarn(format string, v ...any)  { logWithCaller(slog.LevelWarn, format, v...) }
func LogError(format string, v ...any) { logWithCaller(slog.LevelError, format, v...) }
