// Package logging configures the process-wide slog logger used by the Aula
// client packages and the aula CLI.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names accepted by Config.Components.
const (
	ComponentRest      = "rest"
	ComponentRateLimit = "ratelimit"
	ComponentGateway   = "gateway"
	ComponentCLI       = "cli"
	ComponentShutdown  = "shutdown"
)

var (
	globalLogger *slog.Logger
	globalMu     sync.RWMutex

	// logWriter is the open log file, either *os.File or *lumberjack.Logger.
	logWriter   io.WriteCloser
	logWriterMu sync.Mutex

	// allowedComponents is nil when every component is logged.
	allowedComponents map[string]bool
	componentsMu      sync.RWMutex
)

// FileLogConfig holds configuration for rotated file logging.
type FileLogConfig struct {
	// Path is the log file path. Empty disables file logging.
	Path string

	// MaxSizeMB is the size in megabytes at which the file is rotated.
	// Default: 10MB
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	// Default: 3
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// DefaultFileLogConfig returns the default file log configuration.
func DefaultFileLogConfig() FileLogConfig {
	return FileLogConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level for console output (debug, info, warn, error).
	Level string
	// FileLevel is the minimum level for file output. Defaults to Level.
	FileLevel string
	// FileLog enables file output with rotation.
	FileLog *FileLogConfig
	// JSON switches both outputs to JSON.
	JSON bool
	// Components restricts logging to the named components (empty means all).
	Components []string
	// Output replaces stderr as the console writer. Used by tests.
	Output io.Writer
}

// Initialize sets up the global logger. When FileLog is set, records go to
// both the console and the rotated file, each filtered by its own level.
func Initialize(cfg Config) error {
	consoleLevel := parseLevel(cfg.Level)
	fileLevel := consoleLevel
	if cfg.FileLevel != "" {
		fileLevel = parseLevel(cfg.FileLevel)
	}

	setComponents(cfg.Components)

	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}

	logWriterMu.Lock()
	defer logWriterMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}

	var fileWriter io.Writer
	if cfg.FileLog != nil && cfg.FileLog.Path != "" {
		maxSize := cfg.FileLog.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := cfg.FileLog.MaxBackups
		if maxBackups < 0 {
			maxBackups = 3
		}

		lj := &lumberjack.Logger{
			Filename:   cfg.FileLog.Path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   cfg.FileLog.Compress,
		}
		if _, err := lj.Write(nil); err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.FileLog.Path, err)
		}
		logWriter = lj
		fileWriter = lj
	}

	newHandler := func(w io.Writer, level slog.Level) slog.Handler {
		opts := &slog.HandlerOptions{Level: level}
		if cfg.JSON {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}

	var handler slog.Handler
	switch {
	case fileWriter != nil && fileLevel != consoleLevel:
		handler = &multiHandler{handlers: []slog.Handler{
			newHandler(console, consoleLevel),
			newHandler(fileWriter, fileLevel),
		}}
	case fileWriter != nil:
		handler = newHandler(io.MultiWriter(console, fileWriter), consoleLevel)
	default:
		handler = newHandler(console, consoleLevel)
	}

	logger := slog.New(handler)

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	slog.SetDefault(logger)
	return nil
}

func setComponents(components []string) {
	componentsMu.Lock()
	defer componentsMu.Unlock()

	if len(components) == 0 {
		allowedComponents = nil
		return
	}
	allowedComponents = make(map[string]bool, len(components))
	for _, c := range components {
		allowedComponents[c] = true
	}
}

// multiHandler fans out records to handlers with different levels.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// Get returns the global logger, or slog.Default before Initialize.
func Get() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// Close closes the log file, if one is open.
func Close() error {
	logWriterMu.Lock()
	defer logWriterMu.Unlock()

	if logWriter != nil {
		err := logWriter.Close()
		logWriter = nil
		return err
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isComponentAllowed(component string) bool {
	componentsMu.RLock()
	defer componentsMu.RUnlock()

	if allowedComponents == nil {
		return true
	}
	return allowedComponents[component]
}

// componentFilterHandler drops records from components that are filtered out.
type componentFilterHandler struct {
	inner     slog.Handler
	component string
}

func (h *componentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if !isComponentAllowed(h.component) {
		return false
	}
	return h.inner.Enabled(ctx, level)
}

func (h *componentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	if !isComponentAllowed(h.component) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *componentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &componentFilterHandler{
		inner:     h.inner.WithAttrs(attrs),
		component: h.component,
	}
}

func (h *componentFilterHandler) WithGroup(name string) slog.Handler {
	return &componentFilterHandler{
		inner:     h.inner.WithGroup(name),
		component: h.component,
	}
}

// WithComponent returns a logger tagged with component. Records are dropped
// when component filtering is active and component is not listed.
func WithComponent(component string) *slog.Logger {
	base := Get()
	return slog.New(&componentFilterHandler{
		inner:     base.Handler().WithAttrs([]slog.Attr{slog.String("component", component)}),
		component: component,
	})
}

// Rest returns a logger for REST requests.
func Rest() *slog.Logger {
	return WithComponent(ComponentRest)
}

// RateLimit returns a logger for rate limiter decisions.
func RateLimit() *slog.Logger {
	return WithComponent(ComponentRateLimit)
}

// Gateway returns a logger for gateway connection events.
func Gateway() *slog.Logger {
	return WithComponent(ComponentGateway)
}

// CLI returns a logger for the command line interface.
func CLI() *slog.Logger {
	return WithComponent(ComponentCLI)
}

// WithConnection returns a child logger carrying gateway connection context.
func WithConnection(base *slog.Logger, connectionID, sessionID string) *slog.Logger {
	if base == nil {
		return nil
	}
	return base.With(
		"connection_id", connectionID,
		"session_id", sessionID,
	)
}

// WithRequest returns a child logger carrying REST request context.
func WithRequest(base *slog.Logger, requestID, method, url string) *slog.Logger {
	if base == nil {
		return nil
	}
	return base.With(
		"request_id", requestID,
		"method", method,
		"url", url,
	)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Shutdown returns the logger for shutdown coordination.
func Shutdown() *slog.Logger {
	return WithComponent(ComponentShutdown)
}
