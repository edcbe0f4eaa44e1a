package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits applied by SetupFile.
const (
	maxLogSizeMB  = 64
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Setup installs a JSON slog handler writing to stdout as the process default,
// bridges the standard library logger into it and returns the logger. Every
// line carries the service name and, when set, the environment.
func Setup(service, env string) *slog.Logger {
	return setup(os.Stdout, service, env)
}

// SetupFile behaves like Setup but writes to a size-rotated file. An empty
// path falls back to stdout. The returned closer releases the file handle.
func SetupFile(service, env, path string) (*slog.Logger, io.Closer) {
	if strings.TrimSpace(path) == "" {
		return Setup(service, env), nopCloser{}
	}
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}
	return setup(writer, service, env), writer
}

// New builds a logger with the same key layout as Setup without touching the
// process-wide defaults. Tests use it to capture output.
func New(w io.Writer, service, env string) *slog.Logger {
	handler, attrs := newHandler(w, service, env)
	return slog.New(handler).With(attrArgs(attrs)...)
}

func setup(w io.Writer, service, env string) *slog.Logger {
	handler, attrs := newHandler(w, service, env)
	base := slog.New(handler).With(attrArgs(attrs)...)
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func newHandler(w io.Writer, service, env string) (slog.Handler, []slog.Attr) {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	return handler, attrs
}

func attrArgs(attrs []slog.Attr) []any {
	out := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, attr)
	}
	return out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
