package logger

import (
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Options tune the handler built by Setup.
type Options struct {
	Env    string
	Level  string
	Format string
	// Sink receives error records; nil disables persistence.
	Sink Sink
}

func Init(env string) {
	Setup(Options{Env: env})
}

// Setup installs the process-wide logger.
func Setup(opts Options) *slog.Logger {
	level := parseLevel(opts.Level, opts.Env)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.Format == "json" || (opts.Format == "" && opts.Env == "production") {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	if opts.Sink != nil {
		handler = NewPersistingHandler(handler, opts.Sink)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}

func parseLevel(level, env string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if env == "production" {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
