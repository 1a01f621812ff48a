// Package system holds the destructive administrative operations, currently
// the full reset run between festival days.
package system

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagra-pos/sagra-pos/internal/platform/pubsub"
	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// OrdersPort deletes the order history.
type OrdersPort interface {
	DeleteAll(ctx context.Context) (int64, error)
}

// CounterPort rewinds the order-number sequence.
type CounterPort interface {
	Reset(ctx context.Context, value int64) error
}

// SelectionPort drops kitchen selection state.
type SelectionPort interface {
	Prune(ctx context.Context, activeOrderIDs []string) (int, error)
}

// AuditPort records the reset.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Resetter wipes orders, rewinds the counter to zero and clears kitchen
// state. The catalog survives: a reset prepares the next service day, it
// does not uninstall the menu.
type Resetter struct {
	orders     OrdersPort
	counter    CounterPort
	selections SelectionPort
	audit      AuditPort
	events     *pubsub.Broker
	logger     *slog.Logger
}

// NewResetter constructs a Resetter.
func NewResetter(orders OrdersPort, counter CounterPort, selections SelectionPort, audit AuditPort, events *pubsub.Broker, logger *slog.Logger) *Resetter {
	return &Resetter{
		orders:     orders,
		counter:    counter,
		selections: selections,
		audit:      audit,
		events:     events,
		logger:     logger,
	}
}

// Result reports what a reset removed.
type Result struct {
	OrdersDeleted     int64 `json:"orders_deleted"`
	SelectionsDeleted int   `json:"selections_deleted"`
}

// Reset performs the wipe. Order deletion and the counter rewind are the
// essential steps; selection cleanup failures are logged and tolerated
// since the prune job sweeps leftovers anyway.
func (r *Resetter) Reset(ctx context.Context) (*Result, error) {
	if err := shared.Authorize(ctx, shared.CapSystemReset); err != nil {
		return nil, err
	}

	deleted, err := r.orders.DeleteAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("system: delete orders: %w", err)
	}
	if err := r.counter.Reset(ctx, 0); err != nil {
		return nil, fmt.Errorf("system: rewind counter: %w", err)
	}

	pruned, err := r.selections.Prune(ctx, nil)
	if err != nil {
		r.logger.Warn("reset selection cleanup", slog.Any("error", err))
	}

	if r.audit != nil {
		err := r.audit.Record(ctx, shared.AuditLog{
			Actor:    string(shared.RoleFromContext(ctx)),
			Action:   "system_reset",
			Entity:   "orders",
			EntityID: "*",
			Meta:     map[string]any{"orders_deleted": deleted},
		})
		if err != nil {
			r.logger.Warn("record system reset", slog.Any("error", err))
		}
	}
	if r.events != nil {
		err := r.events.Publish(ctx, pubsub.Event{
			Collection: pubsub.CollectionOrders,
			Op:         pubsub.OpDeleted,
			ID:         "*",
			At:         time.Now(),
		})
		if err != nil {
			r.logger.Warn("publish reset event", slog.Any("error", err))
		}
	}

	r.logger.Info("system reset complete",
		slog.Int64("orders_deleted", deleted), slog.Int("selections_deleted", pruned))
	return &Result{OrdersDeleted: deleted, SelectionsDeleted: pruned}, nil
}
