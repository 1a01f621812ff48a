package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sagra-pos/sagra-pos/internal/inventory"
	"github.com/sagra-pos/sagra-pos/internal/orders"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile applies a confirmed order's consumption to stock.
	TaskStockReconcile = "pos:stock_reconcile"
	// TaskSelectionGC prunes kitchen selection sets whose orders moved on.
	TaskSelectionGC = "kitchen:selection_gc"
	// TaskBeverageSweep delivers beverage-only orders stuck in preparation.
	TaskBeverageSweep = "orders:beverage_sweep"
)

// StockReconcilePayload carries the sold lines of one order.
type StockReconcilePayload struct {
	OrderID string                `json:"order_id"`
	Lines   []inventory.OrderLine `json:"lines"`
}

// NewStockReconcileTask constructs an Asynq task for a stock reconcile.
func NewStockReconcileTask(payload StockReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, data, asynq.Queue(QueueDefault)), nil
}

// NewStockReconcileHandler processes TaskStockReconcile tasks.
func NewStockReconcileHandler(reconciler *inventory.Reconciler) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload StockReconcilePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return reconciler.Apply(ctx, payload.OrderID, payload.Lines)
	}
}

// CronPayload carries scheduling metadata for the periodic tasks.
type CronPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSelectionGCTask constructs the periodic selection cleanup task.
func NewSelectionGCTask() (*asynq.Task, error) {
	data, err := json.Marshal(CronPayload{ScheduledFor: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSelectionGC, data, asynq.Queue(QueueDefault)), nil
}

// SelectionPruner is the slice of the kitchen store the GC task needs.
type SelectionPruner interface {
	Prune(ctx context.Context, activeOrderIDs []string) (int, error)
}

// OrderLister reads open orders for the periodic tasks.
type OrderLister interface {
	List(ctx context.Context, req orders.ListRequest) ([]orders.Order, error)
}

// NewSelectionGCHandler processes TaskSelectionGC tasks.
func NewSelectionGCHandler(pruner SelectionPruner, lister OrderLister, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		open, err := lister.List(ctx, orders.ListRequest{
			Statuses: []orders.Status{orders.StatusInPreparation},
		})
		if err != nil {
			return err
		}
		active := make([]string, 0, len(open))
		for _, o := range open {
			active = append(active, o.ID)
		}
		pruned, err := pruner.Prune(ctx, active)
		if err != nil {
			return err
		}
		if pruned > 0 {
			logger.Info("selection gc", slog.Int("pruned", pruned))
		}
		return nil
	}
}

// NewBeverageSweepTask constructs the periodic beverage sweep task.
func NewBeverageSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(CronPayload{ScheduledFor: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBeverageSweep, data, asynq.Queue(QueueDefault)), nil
}

// BeverageSweeper delivers beverage-only orders left in preparation.
type BeverageSweeper interface {
	SweepBeverageOnly(ctx context.Context) (int, error)
}

// NewBeverageSweepHandler processes TaskBeverageSweep tasks.
func NewBeverageSweepHandler(sweeper BeverageSweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		swept, err := sweeper.SweepBeverageOnly(ctx)
		if err != nil {
			return err
		}
		if swept > 0 {
			logger.Info("beverage sweep", slog.Int("delivered", swept))
		}
		return nil
	}
}

func inventoryLine(item orders.Item) inventory.OrderLine {
	return inventory.OrderLine{
		RefID:    item.RefID,
		Category: item.Category,
		Quantity: item.Quantity,
	}
}
