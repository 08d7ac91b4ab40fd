// Package logger is the process-wide structured logger: log/slog with
// a coloured text handler for interactive use and a JSON handler for
// production. Request-scoped fields (operation, virtual path, user id,
// content hash) travel through context.Context via LogContext; the
// *Ctx logging functions splice them into every record automatically.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config selects the log level, output format and destination.
type Config struct {
	Level  string // DEBUG, INFO, WARN or ERROR
	Format string // text or json
	Output string // stdout, stderr, or a file path
}

var (
	// level is shared by every handler this package ever builds, so
	// SetLevel takes effect immediately without a handler swap.
	level slog.LevelVar

	mu       sync.RWMutex
	format             = "text"
	output   io.Writer = os.Stdout
	useColor bool
	slogger  *slog.Logger
)

func init() {
	mu.Lock()
	useColor = isTerminal(os.Stdout.Fd())
	rebuild()
	mu.Unlock()
}

// rebuild swaps in a handler matching the current format, output and
// colour settings. Callers must hold mu.
func rebuild() {
	opts := &slog.HandlerOptions{Level: &level}
	if format == "json" {
		slogger = slog.New(slog.NewJSONHandler(output, opts))
	} else {
		slogger = slog.New(newTextHandler(output, opts, useColor))
	}
}

// Init applies cfg. Output may be "stdout", "stderr", or a file path;
// colour is only enabled when the destination is a terminal.
func Init(cfg Config) error {
	if cfg.Output != "" {
		var w io.Writer
		var color bool
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			w, color = os.Stdout, isTerminal(os.Stdout.Fd())
		case "stderr":
			w, color = os.Stderr, isTerminal(os.Stderr.Fd())
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			w, color = f, false
		}
		mu.Lock()
		output, useColor = w, color
		rebuild()
		mu.Unlock()
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	return nil
}

// InitWithWriter points the logger at w. Primarily for tests.
func InitWithWriter(w io.Writer, lvl, fmtName string, color bool) {
	mu.Lock()
	output, useColor = w, color
	rebuild()
	mu.Unlock()

	if lvl != "" {
		SetLevel(lvl)
	}
	if fmtName != "" {
		SetFormat(fmtName)
	}
}

// SetLevel sets the minimum level. Unrecognized names are ignored.
func SetLevel(lvl string) {
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		level.Set(slog.LevelDebug)
	case "INFO":
		level.Set(slog.LevelInfo)
	case "WARN":
		level.Set(slog.LevelWarn)
	case "ERROR":
		level.Set(slog.LevelError)
	}
}

// SetFormat switches between "text" and "json" output. Unrecognized
// formats are ignored.
func SetFormat(f string) {
	f = strings.ToLower(f)
	if f != "text" && f != "json" {
		return
	}
	mu.Lock()
	format = f
	rebuild()
	mu.Unlock()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// With returns a *slog.Logger bound to extra attributes, the shape
// every component constructor in this module takes as its logger
// dependency.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Debug logs at debug level with alternating key/value args.
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Info logs at info level with alternating key/value args.
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs at warn level with alternating key/value args.
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs at error level with alternating key/value args.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// DebugCtx is Debug plus the LogContext fields carried by ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	current().Debug(msg, appendContextFields(ctx, args)...)
}

// InfoCtx is Info plus the LogContext fields carried by ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	current().Info(msg, appendContextFields(ctx, args)...)
}

// WarnCtx is Warn plus the LogContext fields carried by ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	current().Warn(msg, appendContextFields(ctx, args)...)
}

// ErrorCtx is Error plus the LogContext fields carried by ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	current().Error(msg, appendContextFields(ctx, args)...)
}

// appendContextFields prepends ctx's LogContext fields so they lead
// every record, ahead of the call-site args.
func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	ctxArgs := make([]any, 0, 10+len(args))
	if lc.TraceID != "" {
		ctxArgs = append(ctxArgs, KeyTraceID, lc.TraceID)
	}
	if lc.Operation != "" {
		ctxArgs = append(ctxArgs, KeyOperation, lc.Operation)
	}
	if lc.Path != "" {
		ctxArgs = append(ctxArgs, KeyPath, lc.Path)
	}
	if lc.UserID != 0 {
		ctxArgs = append(ctxArgs, KeyUserID, lc.UserID)
	}
	if lc.Hash != "" {
		ctxArgs = append(ctxArgs, KeyHash, lc.Hash)
	}
	return append(ctxArgs, args...)
}
