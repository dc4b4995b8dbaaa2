// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package errutil

import (
	"context"
	"log/slog"
)

// LogError logs err at error level with its code and context.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError for handlers that read the context, such as
// the trace-aware handler in internal/logging.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, msg, Attrs(err)...)
}
