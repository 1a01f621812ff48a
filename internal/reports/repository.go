// Package reports aggregates sales figures for the admin dashboard.
// Cancelled orders never count; staff orders carry a zero total, so revenue
// figures exclude them while quantity figures still see their consumption.
package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Summary is the headline sales view.
type Summary struct {
	OrderCount        int64 `json:"order_count"`
	RevenueCents      int64 `json:"revenue_cents"`
	AverageOrderCents int64 `json:"average_order_cents"`
	StaffOrderCount   int64 `json:"staff_order_count"`
}

// ProductSales ranks one catalog entry by units sold.
type ProductSales struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	UnitsSold    int64  `json:"units_sold"`
	RevenueCents int64  `json:"revenue_cents"`
}

// CategorySplit aggregates sales per category.
type CategorySplit struct {
	Category     string `json:"category"`
	UnitsSold    int64  `json:"units_sold"`
	RevenueCents int64  `json:"revenue_cents"`
}

// InventoryLine pairs a product's sold units with its remaining stock.
type InventoryLine struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	UnitsSold int64  `json:"units_sold"`
	Remaining int64  `json:"remaining"`
}

// Repository runs the report aggregations against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Summary aggregates counts and revenue over all non-cancelled orders.
func (r *Repository) Summary(ctx context.Context) (Summary, error) {
	const query = `
		SELECT COUNT(*),
		       COALESCE(SUM(total_cents), 0),
		       COUNT(*) FILTER (WHERE staff)
		FROM orders
		WHERE status <> 'cancelled'
	`
	var s Summary
	if err := r.pool.QueryRow(ctx, query).Scan(&s.OrderCount, &s.RevenueCents, &s.StaffOrderCount); err != nil {
		return Summary{}, err
	}
	if paying := s.OrderCount - s.StaffOrderCount; paying > 0 {
		s.AverageOrderCents = s.RevenueCents / paying
	}
	return s, nil
}

// TopProducts ranks sold entries by units, best sellers first. Composite
// menus rank as their own entry, not as their components.
func (r *Repository) TopProducts(ctx context.Context, limit int) ([]ProductSales, error) {
	const query = `
		SELECT i.name, i.category,
		       SUM(i.quantity),
		       COALESCE(SUM(i.price_cents * i.quantity) FILTER (WHERE NOT o.staff), 0)
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.status <> 'cancelled'
		GROUP BY i.name, i.category
		ORDER BY SUM(i.quantity) DESC, i.name ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ProductSales
	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.Name, &p.Category, &p.UnitsSold, &p.RevenueCents); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Categories splits sold units and revenue per category.
func (r *Repository) Categories(ctx context.Context) ([]CategorySplit, error) {
	const query = `
		SELECT i.category,
		       SUM(i.quantity),
		       COALESCE(SUM(i.price_cents * i.quantity) FILTER (WHERE NOT o.staff), 0)
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.status <> 'cancelled'
		GROUP BY i.category
		ORDER BY i.category ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CategorySplit
	for rows.Next() {
		var c CategorySplit
		if err := rows.Scan(&c.Category, &c.UnitsSold, &c.RevenueCents); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Inventory pairs every product's sold units with its live stock. Products
// never sold still appear, with zero units.
func (r *Repository) Inventory(ctx context.Context) ([]InventoryLine, error) {
	const query = `
		SELECT p.name, p.category,
		       COALESCE(sold.units, 0),
		       p.quantity
		FROM products p
		LEFT JOIN (
			SELECT i.ref_id, SUM(i.quantity) AS units
			FROM order_items i
			JOIN orders o ON o.id = i.order_id
			WHERE o.status <> 'cancelled' AND i.category <> 'composite'
			GROUP BY i.ref_id
		) sold ON sold.ref_id = p.id
		ORDER BY p.created_at ASC, p.id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []InventoryLine
	for rows.Next() {
		var line InventoryLine
		if err := rows.Scan(&line.Name, &line.Category, &line.UnitsSold, &line.Remaining); err != nil {
			return nil, err
		}
		result = append(result, line)
	}
	return result, rows.Err()
}
