// Package logger provides the process-wide structured logger built on log/slog.
//
// Request handlers should log through WithCtx so the request_id injected by
// the Logger middleware follows every line:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("restocked", "item_id", id, "amount", 10)
//
// Long-lived components (subscriptions, the live cache, the notifier) tag
// their lines with Component instead.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/invictusops/invictus/config"
)

var (
	L *slog.Logger

	mu        sync.Mutex
	mongoSink *MongoHandler
)

func init() {
	L = slog.New(newHandler(os.Stdout, config.AppEnv()))
	slog.SetDefault(L)
}

func newHandler(w io.Writer, env string) slog.Handler {
	switch env {
	case "production", "prod":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	case "testing", "test":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

// EnableMongo mirrors every record into the logs collection of the given
// mongo deployment. Call Shutdown before exit to flush the buffer.
func EnableMongo(uri, db string) error {
	h, err := NewMongoHandler(uri, db, "logs")
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	mongoSink = h
	L = slog.New(NewMultiHandler(L.Handler(), h))
	slog.SetDefault(L)
	return nil
}

// Shutdown flushes asynchronous handlers.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if mongoSink != nil {
		mongoSink.Close()
		mongoSink = nil
	}
}

// SetOutput replaces the base handler. Tests use it to silence or capture output.
func SetOutput(w io.Writer) {
	L = slog.New(newHandler(w, config.AppEnv()))
	slog.SetDefault(L)
}

// Component returns the base logger tagged with component=name.
func Component(name string) *slog.Logger {
	return L.With("component", name)
}

// ─────────────────────────────────────────────
// Context-aware logger
// ─────────────────────────────────────────────

type ctxKey struct{}

// WithCtx returns the request-scoped logger stored by InjectLogger, or the
// base logger when the context carries none.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores log in ctx. Called by the Logger middleware.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { L.Error(msg, args...) }
