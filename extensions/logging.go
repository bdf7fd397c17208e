package extensions

import (
	"context"
	"log/slog"
	"time"

	market "github.com/supplied-fn/market-go"
)

// LoggingExtension logs all market operations
type LoggingExtension struct {
	market.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a new logging extension.
// logHandler: slog.Handler for output (use NewSilentHandler in tests)
func NewLoggingExtension(logHandler slog.Handler) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: market.NewBaseExtension("logging"),
		logger:        slog.New(logHandler),
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *market.Operation) (any, error) {
	start := time.Now()
	result, err := next()

	duration := time.Since(start)
	if err != nil {
		e.logger.Error("operation failed",
			"kind", string(op.Kind),
			"supplier", op.Supplier,
			"duration", duration,
			"error", err)
	} else {
		e.logger.Debug("operation completed",
			"kind", string(op.Kind),
			"supplier", op.Supplier,
			"duration", duration)
	}

	return result, err
}

func (e *LoggingExtension) OnRecall(key market.CacheKey) {
	e.logger.Info("cache entry recalled", "key", key.String())
}

// SilentHandler is a slog.Handler that discards all log output
// Useful for testing when you don't want log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}
