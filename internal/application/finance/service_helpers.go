package finance

import (
	"context"

	"github.com/storefront/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// publishEvents publishes and clears the aggregate's pending events.
// Publish failures are logged; the state change is already saved.
func publishEvents(ctx context.Context, bus shared.EventPublisher, logger *zap.Logger, agg shared.AggregateRoot) {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	if bus == nil || len(events) == 0 {
		return
	}
	if err := bus.Publish(ctx, events...); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.Error(err),
			zap.String("aggregate_id", agg.GetID().String()),
			zap.Int("count", len(events)),
		)
	}
}

// acquireLock takes key on locker, or does nothing when no locker is configured
func acquireLock(ctx context.Context, locker shared.Locker, key string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	unlock, err := locker.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	return unlock, nil
}
