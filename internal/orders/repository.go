package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists an order together with its item snapshot.
func (r *Repository) Create(ctx context.Context, o Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, status, staff, total_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, o.ID, o.OrderNumber, o.Status, o.Staff, o.TotalCents, o.CreatedAt)
	if err != nil {
		return err
	}
	for i, item := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, ref_id, name, price_cents, quantity, category, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, o.ID, item.RefID, item.Name, item.PriceCents, item.Quantity, item.Category, i)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Get fetches one order with its items.
func (r *Repository) Get(ctx context.Context, id string) (*Order, error) {
	const query = `
		SELECT id, order_number, status, staff, total_cents, created_at, updated_at, completed_at, delivered_at
		FROM orders
		WHERE id = $1
	`
	var o Order
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.OrderNumber, &o.Status, &o.Staff, &o.TotalCents,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt, &o.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.orderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// OrderNumberExists reports whether any order carries the given number.
func (r *Repository) OrderNumberExists(ctx context.Context, number int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, number).Scan(&exists)
	return exists, err
}

// ListRequest filters and orders the result of List.
type ListRequest struct {
	Statuses []Status
	// OrderBy must be one of the orderings below; default is order number.
	OrderBy string
}

// Supported orderings.
const (
	OrderByNumber        = "order_number"
	OrderByCreatedAsc    = "created_asc"
	OrderByCompletedAsc  = "completed_asc"
	OrderByCompletedDesc = "completed_desc"
)

// List returns orders matching the filter.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Order, error) {
	var conditions []string
	var args []interface{}
	if len(req.Statuses) > 0 {
		statuses := make([]string, 0, len(req.Statuses))
		for _, s := range req.Statuses {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, statuses)
	}

	query := `
		SELECT id, order_number, status, staff, total_cents, created_at, updated_at, completed_at, delivered_at
		FROM orders
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	switch req.OrderBy {
	case OrderByCreatedAsc:
		query += " ORDER BY created_at ASC"
	case OrderByCompletedAsc:
		query += " ORDER BY completed_at ASC NULLS LAST"
	case OrderByCompletedDesc:
		query += " ORDER BY completed_at DESC NULLS LAST"
	default:
		query += " ORDER BY order_number ASC"
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.Staff, &o.TotalCents,
			&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt, &o.DeliveredAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		items, err := r.orderItems(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Items = items
	}
	return result, nil
}

// UpdateStatus moves an order to status, maintaining the per-status
// timestamps: ready sets completed_at, delivered sets delivered_at, a
// restore back to in_preparation clears completed_at.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error {
	var query string
	switch status {
	case StatusReady:
		query = `UPDATE orders SET status = $2, completed_at = $3, updated_at = $3 WHERE id = $1`
	case StatusDelivered:
		query = `UPDATE orders SET status = $2, delivered_at = $3, updated_at = $3 WHERE id = $1`
	case StatusInPreparation:
		query = `UPDATE orders SET status = $2, completed_at = NULL, updated_at = $3 WHERE id = $1`
	default:
		query = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`
	}
	tag, err := r.pool.Exec(ctx, query, id, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every order. Used only by the explicit system reset.
func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) orderItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ref_id, name, price_cents, quantity, category
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.RefID, &item.Name, &item.PriceCents, &item.Quantity, &item.Category); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
