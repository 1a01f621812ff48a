// Package inventory applies confirmed sales to product stock. The register
// never decrements stock inline; it records the sale and the reconciler
// catches stock up asynchronously with atomic server-side deltas, so two
// registers selling the same product can never overwrite each other.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
)

// OrderLine is one sold line handed to the reconciler.
type OrderLine struct {
	RefID    int64            `json:"ref_id"`
	Category catalog.Category `json:"category"`
	Quantity int64            `json:"quantity"`
}

// StockPort is the slice of the catalog store the reconciler writes through.
type StockPort interface {
	ApplyStockDelta(ctx context.Context, productID, delta int64) error
	MenusByIDs(ctx context.Context, ids []int64) (map[int64]catalog.CompositeMenu, error)
	MenusReferencing(ctx context.Context, productIDs []int64) ([]int64, error)
	RecomputeMinQuantity(ctx context.Context, menuID int64) (int64, error)
}

// Reconciler turns order lines into stock decrements.
type Reconciler struct {
	store  StockPort
	logger *slog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store StockPort, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Apply decrements stock for every line of a confirmed order. Composite
// lines are expanded into their component products first, so selling one
// menu decrements each referenced product once per menu sold. Individual
// decrement failures are logged and skipped; one vanished product must not
// block the rest of the order. After the decrements it refreshes the cached
// availability of every composite menu touched by the changed products.
//
// Deltas are applied as server-side increments, never read-modify-write, and
// stock is allowed to go negative: overselling is a reporting problem, not a
// write conflict.
func (r *Reconciler) Apply(ctx context.Context, orderID string, lines []OrderLine) error {
	deltas, err := r.expand(ctx, lines)
	if err != nil {
		return fmt.Errorf("inventory: expand order %s: %w", orderID, err)
	}
	if len(deltas) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		touched []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	for productID, delta := range deltas {
		g.Go(func() error {
			if err := r.store.ApplyStockDelta(gctx, productID, -delta); err != nil {
				r.logger.Warn("stock decrement skipped",
					slog.String("order_id", orderID),
					slog.Int64("product_id", productID),
					slog.Any("error", err))
				return nil
			}
			mu.Lock()
			touched = append(touched, productID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return r.refreshMenus(ctx, touched)
}

// expand folds order lines into per-product decrement quantities.
func (r *Reconciler) expand(ctx context.Context, lines []OrderLine) (map[int64]int64, error) {
	var menuIDs []int64
	deltas := make(map[int64]int64)
	for _, line := range lines {
		if line.Category == catalog.CategoryComposite {
			menuIDs = append(menuIDs, line.RefID)
			continue
		}
		deltas[line.RefID] += line.Quantity
	}
	if len(menuIDs) == 0 {
		return deltas, nil
	}

	menus, err := r.store.MenusByIDs(ctx, menuIDs)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if line.Category != catalog.CategoryComposite {
			continue
		}
		menu, ok := menus[line.RefID]
		if !ok {
			// Menu deleted between sale and reconcile; its components
			// are unknowable, skip the line.
			r.logger.Warn("composite menu vanished before reconcile",
				slog.Int64("menu_id", line.RefID))
			continue
		}
		for _, productID := range menu.Items {
			deltas[productID] += line.Quantity
		}
	}
	return deltas, nil
}

// refreshMenus recomputes the cached availability of every menu referencing
// a changed product.
func (r *Reconciler) refreshMenus(ctx context.Context, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	menuIDs, err := r.store.MenusReferencing(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("inventory: find dependent menus: %w", err)
	}
	for _, menuID := range menuIDs {
		if _, err := r.store.RecomputeMinQuantity(ctx, menuID); err != nil {
			r.logger.Warn("menu availability refresh failed",
				slog.Int64("menu_id", menuID), slog.Any("error", err))
		}
	}
	return nil
}
