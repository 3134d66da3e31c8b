package middleware

import (
	"context"
	"log/slog"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/outbox"
)

// OutboxFlush relays committed events after a successful command. It must sit outside
// Transaction. A relay failure is logged only: the events stay in the outbox for the worker.
func OutboxFlush(flusher outbox.Flusher, logger *slog.Logger) CommandMiddleware {
	if flusher == nil {
		panic("middleware: outbox flusher required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := flusher.Flush(ctx); err != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "err", err)
			}
			return res, nil
		})
	}
}
