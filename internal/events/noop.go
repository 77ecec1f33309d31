package events

import (
	"context"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/ports"
)

// LoggingBus logs events instead of publishing them. It is used when no
// broker is configured.
type LoggingBus struct {
	logger *slog.Logger
}

func NewLoggingBus(logger *slog.Logger) *LoggingBus {
	return &LoggingBus{logger: logger}
}

func (b *LoggingBus) Publish(ctx context.Context, event ports.OrderEvent) error {
	b.logger.DebugContext(ctx, "event::"+event.Type,
		"order_id", event.OrderID,
		"user_id", event.UserID,
		"total_cents", event.TotalCents,
	)
	return nil
}
