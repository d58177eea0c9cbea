package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/lmittmann/tint"
	"github.com/lodestar-hq/lodestar/internal/config"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelManager provides runtime log level control.
type LevelManager struct {
	levelVar     *slog.LevelVar
	defaultLevel slog.Level
	mu           sync.RWMutex
}

var globalManager *LevelManager
var managerOnce sync.Once

// GetLevelManager returns the global LevelManager instance. It is nil until
// NewLogger has been called.
func GetLevelManager() *LevelManager {
	return globalManager
}

// Level returns the current log level as a string.
func (m *LevelManager) Level() string {
	if m == nil || m.levelVar == nil {
		return "info"
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return levelToString(m.levelVar.Level())
}

// SetLevel changes the log level at runtime.
func (m *LevelManager) SetLevel(level string) {
	if m == nil || m.levelVar == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levelVar.Set(parseLevel(level))
}

// ResetToDefault resets the log level to the configured default.
func (m *LevelManager) ResetToDefault() {
	if m == nil || m.levelVar == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levelVar.Set(m.defaultLevel)
}

// NewLogger builds the application logger: tinted console output when stdout
// is a terminal, plus a rotating file in the configured format.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.OutputFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}

	defaultLevel := parseLevel(cfg.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(defaultLevel)

	managerOnce.Do(func() {
		globalManager = &LevelManager{
			levelVar:     levelVar,
			defaultLevel: defaultLevel,
		}
	})

	var handler slog.Handler
	if cfg.Format == "json" {
		multiWriter := io.MultiWriter(os.Stdout, fileWriter)
		handler = slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
			Level: levelVar,
		})
	} else {
		fileHandler := slog.NewTextHandler(fileWriter, &slog.HandlerOptions{Level: levelVar})
		stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
			Level:   levelVar,
			NoColor: !shouldUseColors(),
		})
		handler = NewMultiHandler(stdoutHandler, fileHandler)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// shouldUseColors respects NO_COLOR (https://no-color.org/) and dumb
// terminals in addition to the TTY check.
func shouldUseColors() bool {
	if !isTerminal(os.Stdout) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	term := os.Getenv("TERM")
	if term == "dumb" || term == "" {
		return false
	}
	return true
}

// MultiHandler fans records out to multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}
