package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// CounterStore persists the order-number sequence. Increment must be a
// single atomic read-modify-write against the backing store: two concurrent
// callers may never observe the same value.
type CounterStore interface {
	Increment(ctx context.Context) (int64, error)
	Set(ctx context.Context, value int64) error
}

// NumberChecker answers whether an order number is already in use.
type NumberChecker interface {
	OrderNumberExists(ctx context.Context, number int64) (bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Counter hands out strictly increasing order numbers. After allocating, it
// defensively re-checks the orders collection: on a collision it retries the
// atomic increment once and then falls back to a non-sequential
// timestamp-derived number, because confirming the order matters more than
// keeping the sequence dense. The fallback is recorded as a data-quality
// event.
type Counter struct {
	store  CounterStore
	orders NumberChecker
	audit  AuditPort
	logger *slog.Logger
}

// NewCounter builds Counter.
func NewCounter(store CounterStore, orders NumberChecker, audit AuditPort, logger *slog.Logger) *Counter {
	return &Counter{store: store, orders: orders, audit: audit, logger: logger}
}

// Next allocates the next order number.
func (c *Counter) Next(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		number, err := c.store.Increment(ctx)
		if err != nil {
			return 0, fmt.Errorf("orders: increment counter: %w", err)
		}
		inUse, err := c.orders.OrderNumberExists(ctx, number)
		if err != nil {
			return 0, fmt.Errorf("orders: duplicate check: %w", err)
		}
		if !inUse {
			return number, nil
		}
		c.logger.Warn("order number already in use", slog.Int64("number", number), slog.Int("attempt", attempt+1))
	}

	fallback := time.Now().UnixNano()
	c.logger.Warn("order counter collided twice, using fallback number", slog.Int64("number", fallback))
	if c.audit != nil {
		if err := c.audit.Record(ctx, shared.AuditLog{
			Actor:    "system",
			Action:   "order_number_fallback",
			Entity:   "order_counter",
			EntityID: "1",
			Meta:     map[string]any{"fallback_number": fallback},
		}); err != nil {
			c.logger.Warn("record counter fallback", slog.Any("error", err))
		}
	}
	return fallback, nil
}

// Reset forces the counter to value. Used by the full system reset (value 0)
// and by CSV import (value = highest imported order number).
func (c *Counter) Reset(ctx context.Context, value int64) error {
	if err := c.store.Set(ctx, value); err != nil {
		return fmt.Errorf("orders: reset counter: %w", err)
	}
	return nil
}
