package http

import (
	"context"
	"log/slog"
)

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// loggerFor tags the request logger, or fallback outside a request, with the
// handler name. resource and operation are skipped when empty.
func loggerFor(ctx context.Context, fallback *slog.Logger, handler, resource, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = orDefault(fallback)
	}

	tags := make([]any, 0, 6+len(attrs))
	tags = append(tags, "handler", handler)
	if resource != "" {
		tags = append(tags, "resource", resource)
	}
	if operation != "" {
		tags = append(tags, "operation", operation)
	}
	return logger.With(append(tags, attrs...)...)
}
