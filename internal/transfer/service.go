package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/orders"
	"github.com/sagra-pos/sagra-pos/internal/platform/db"
	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// CounterPort lets the import align the order-number sequence with the
// imported data.
type CounterPort interface {
	Reset(ctx context.Context, value int64) error
}

// CatalogPort is the read side of the export.
type CatalogPort interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	ListCompositeMenus(ctx context.Context) ([]catalog.CompositeMenu, error)
}

// OrdersPort is the read side of the export.
type OrdersPort interface {
	List(ctx context.Context, req orders.ListRequest) ([]orders.Order, error)
}

// Service exports and imports the whole system state. Import writes raw SQL
// inside one transaction because it bypasses the per-entity services on
// purpose: a restore must not trigger events, reconciles or availability
// refreshes halfway through.
type Service struct {
	pool    *pgxpool.Pool
	catalog CatalogPort
	orders  OrdersPort
	counter CounterPort
	logger  *slog.Logger
}

// NewService constructs the transfer service.
func NewService(pool *pgxpool.Pool, cat CatalogPort, ordersPort OrdersPort, counter CounterPort, logger *slog.Logger) *Service {
	return &Service{pool: pool, catalog: cat, orders: ordersPort, counter: counter, logger: logger}
}

// Export writes the current system state as a transfer document.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	if err := shared.Authorize(ctx, shared.CapTransferManage); err != nil {
		return err
	}
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("transfer: export products: %w", err)
	}
	menus, err := s.catalog.ListCompositeMenus(ctx)
	if err != nil {
		return fmt.Errorf("transfer: export menus: %w", err)
	}
	allOrders, err := s.orders.List(ctx, orders.ListRequest{})
	if err != nil {
		return fmt.Errorf("transfer: export orders: %w", err)
	}
	return Write(w, Archive{Products: products, Menus: menus, Orders: allOrders})
}

// ImportResult summarises what a completed import installed.
type ImportResult struct {
	Products     int   `json:"products"`
	Menus        int   `json:"menus"`
	Orders       int   `json:"orders"`
	CounterValue int64 `json:"counter_value"`
}

// Import replaces the entire system state with the document's contents. The
// source installation assigned its own ids, so products and menus receive
// fresh ids here and every reference in menus and order lines is remapped.
// The order counter is set to the highest imported order number so new
// orders continue the sequence.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	if err := shared.Authorize(ctx, shared.CapTransferManage); err != nil {
		return nil, err
	}
	archive, err := Read(r)
	if err != nil {
		return nil, err
	}

	var maxNumber int64
	for _, o := range archive.Orders {
		if o.OrderNumber > maxNumber {
			maxNumber = o.OrderNumber
		}
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"order_items", "orders", "composite_menu_items", "composite_menus", "products"} {
			if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("transfer: clear %s: %w", table, err)
			}
		}

		productIDs := make(map[int64]int64, len(archive.Products))
		for _, p := range archive.Products {
			var newID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO products (name, category, price_cents, quantity)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, p.Name, p.Category, p.PriceCents, p.Quantity).Scan(&newID)
			if err != nil {
				return fmt.Errorf("transfer: import product %q: %w", p.Name, err)
			}
			productIDs[p.ID] = newID
		}

		menuIDs := make(map[int64]int64, len(archive.Menus))
		for _, m := range archive.Menus {
			var newID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO composite_menus (name, price_cents, min_quantity)
				VALUES ($1, $2, 0)
				RETURNING id
			`, m.Name, m.PriceCents).Scan(&newID)
			if err != nil {
				return fmt.Errorf("transfer: import menu %q: %w", m.Name, err)
			}
			menuIDs[m.ID] = newID
			for position, oldProductID := range m.Items {
				newProductID, ok := productIDs[oldProductID]
				if !ok {
					return fmt.Errorf("transfer: menu %q references unknown product %d", m.Name, oldProductID)
				}
				_, err := tx.Exec(ctx, `
					INSERT INTO composite_menu_items (menu_id, product_id, position)
					VALUES ($1, $2, $3)
				`, newID, newProductID, position)
				if err != nil {
					return fmt.Errorf("transfer: import menu %q items: %w", m.Name, err)
				}
			}
			_, err = tx.Exec(ctx, `
				UPDATE composite_menus
				SET min_quantity = COALESCE((
					SELECT MIN(COALESCE(p.quantity, 0))
					FROM composite_menu_items i
					LEFT JOIN products p ON p.id = i.product_id
					WHERE i.menu_id = composite_menus.id
				), 0)
				WHERE id = $1
			`, newID)
			if err != nil {
				return fmt.Errorf("transfer: seed menu %q availability: %w", m.Name, err)
			}
		}

		for _, o := range archive.Orders {
			_, err := tx.Exec(ctx, `
				INSERT INTO orders (id, order_number, status, staff, total_cents, created_at, updated_at, completed_at, delivered_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, o.ID, o.OrderNumber, o.Status, o.Staff, o.TotalCents, o.CreatedAt, o.UpdatedAt, o.CompletedAt, o.DeliveredAt)
			if err != nil {
				return fmt.Errorf("transfer: import order %d: %w", o.OrderNumber, err)
			}
			for position, item := range o.Items {
				refID := remapItemRef(item, productIDs, menuIDs)
				_, err := tx.Exec(ctx, `
					INSERT INTO order_items (order_id, ref_id, name, price_cents, quantity, category, position)
					VALUES ($1, $2, $3, $4, $5, $6, $7)
				`, o.ID, refID, item.Name, item.PriceCents, item.Quantity, item.Category, position)
				if err != nil {
					return fmt.Errorf("transfer: import order %d items: %w", o.OrderNumber, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.counter.Reset(ctx, maxNumber); err != nil {
		return nil, err
	}

	s.logger.Info("transfer import complete",
		slog.Int("products", len(archive.Products)),
		slog.Int("menus", len(archive.Menus)),
		slog.Int("orders", len(archive.Orders)),
		slog.Int64("counter", maxNumber))

	return &ImportResult{
		Products:     len(archive.Products),
		Menus:        len(archive.Menus),
		Orders:       len(archive.Orders),
		CounterValue: maxNumber,
	}, nil
}

// remapItemRef points an imported order line at the freshly assigned id of
// the product or menu it references. A reference the maps cannot resolve
// keeps its old id; the snapshot fields still render it.
func remapItemRef(item orders.Item, productIDs, menuIDs map[int64]int64) int64 {
	ids := productIDs
	if item.Category == catalog.CategoryComposite {
		ids = menuIDs
	}
	if newID, ok := ids[item.RefID]; ok {
		return newID
	}
	return item.RefID
}
