package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateProduct inserts a product and returns its generated id.
func (r *Repository) CreateProduct(ctx context.Context, p Product) (int64, error) {
	const query = `
		INSERT INTO products (name, category, price_cents, quantity, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query, p.Name, p.Category, p.PriceCents, p.Quantity).Scan(&id)
	return id, err
}

// UpdateProduct rewrites name, price and quantity of an existing product.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, name string, priceCents, quantity int64) error {
	const query = `
		UPDATE products
		SET name = $2, price_cents = $3, quantity = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, name, priceCents, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product. Composite menus referencing it are left
// in place; their next recomputation sees the missing product as stock 0.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProduct fetches one product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	const query = `
		SELECT id, name, category, price_cents, quantity, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	var p Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.Quantity, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListProducts returns all products in insertion order.
func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	const query = `
		SELECT id, name, category, price_cents, quantity, created_at, updated_at
		FROM products
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ProductsByIDs fetches the given products keyed by id. Missing ids are
// simply absent from the result; callers decide how to treat them.
func (r *Repository) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	if len(ids) == 0 {
		return map[int64]Product{}, nil
	}
	const query = `
		SELECT id, name, category, price_cents, quantity, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

// ApplyStockDelta applies an atomic server-side increment to a product's
// quantity. There is deliberately no lower bound: stock may go negative
// under concurrent sales and the availability calculator clamps it.
func (r *Repository) ApplyStockDelta(ctx context.Context, productID, delta int64) error {
	const query = `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, productID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateCompositeMenu inserts a menu and its ordered component references.
func (r *Repository) CreateCompositeMenu(ctx context.Context, m CompositeMenu) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO composite_menus (name, price_cents, min_quantity, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id
	`, m.Name, m.PriceCents, m.MinQuantity).Scan(&id)
	if err != nil {
		return 0, err
	}
	for i, productID := range m.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO composite_menu_items (menu_id, product_id, position)
			VALUES ($1, $2, $3)
		`, id, productID, i); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateCompositeMenu rewrites a menu's fields and replaces its components.
func (r *Repository) UpdateCompositeMenu(ctx context.Context, id int64, name string, priceCents int64, items []int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE composite_menus
		SET name = $2, price_cents = $3, updated_at = NOW()
		WHERE id = $1
	`, id, name, priceCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM composite_menu_items WHERE menu_id = $1`, id); err != nil {
		return err
	}
	for i, productID := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO composite_menu_items (menu_id, product_id, position)
			VALUES ($1, $2, $3)
		`, id, productID, i); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// DeleteCompositeMenu removes a menu together with its component references.
func (r *Repository) DeleteCompositeMenu(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM composite_menus WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCompositeMenu fetches one menu with its ordered component ids.
func (r *Repository) GetCompositeMenu(ctx context.Context, id int64) (*CompositeMenu, error) {
	const query = `
		SELECT id, name, price_cents, min_quantity, created_at, updated_at
		FROM composite_menus
		WHERE id = $1
	`
	var m CompositeMenu
	err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.Name, &m.PriceCents, &m.MinQuantity, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.menuItems(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Items = items
	return &m, nil
}

// ListCompositeMenus returns all menus with components, in insertion order.
func (r *Repository) ListCompositeMenus(ctx context.Context) ([]CompositeMenu, error) {
	const query = `
		SELECT id, name, price_cents, min_quantity, created_at, updated_at
		FROM composite_menus
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []CompositeMenu
	for rows.Next() {
		var m CompositeMenu
		if err := rows.Scan(&m.ID, &m.Name, &m.PriceCents, &m.MinQuantity, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range menus {
		items, err := r.menuItems(ctx, menus[i].ID)
		if err != nil {
			return nil, err
		}
		menus[i].Items = items
	}
	return menus, nil
}

// MenusByIDs fetches the given menus keyed by id, components included.
// Missing ids are absent from the result.
func (r *Repository) MenusByIDs(ctx context.Context, ids []int64) (map[int64]CompositeMenu, error) {
	if len(ids) == 0 {
		return map[int64]CompositeMenu{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, price_cents, min_quantity, created_at, updated_at
		FROM composite_menus
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]CompositeMenu, len(ids))
	for rows.Next() {
		var m CompositeMenu
		if err := rows.Scan(&m.ID, &m.Name, &m.PriceCents, &m.MinQuantity, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		result[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for id, m := range result {
		items, err := r.menuItems(ctx, id)
		if err != nil {
			return nil, err
		}
		m.Items = items
		result[id] = m
	}
	return result, nil
}

func (r *Repository) menuItems(ctx context.Context, menuID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id
		FROM composite_menu_items
		WHERE menu_id = $1
		ORDER BY position ASC
	`, menuID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []int64
	for rows.Next() {
		var productID int64
		if err := rows.Scan(&productID); err != nil {
			return nil, err
		}
		items = append(items, productID)
	}
	return items, rows.Err()
}

// MenusReferencing returns the ids of every composite menu whose component
// set intersects the given products. Used to find the menus whose cached
// availability a stock change may have invalidated.
func (r *Repository) MenusReferencing(ctx context.Context, productIDs []int64) ([]int64, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT menu_id
		FROM composite_menu_items
		WHERE product_id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecomputeMinQuantity refreshes a menu's cached availability from the
// authoritative stock of its referenced products, counting a missing
// product as stock 0, and returns the new value. The subquery reads current
// rows at execution time, so the cache never compounds staleness from the
// caller's snapshot.
func (r *Repository) RecomputeMinQuantity(ctx context.Context, menuID int64) (int64, error) {
	const query = `
		UPDATE composite_menus
		SET min_quantity = COALESCE((
			SELECT MIN(COALESCE(p.quantity, 0))
			FROM composite_menu_items i
			LEFT JOIN products p ON p.id = i.product_id
			WHERE i.menu_id = composite_menus.id
		), 0), updated_at = NOW()
		WHERE id = $1
		RETURNING min_quantity
	`
	var min int64
	err := r.pool.QueryRow(ctx, query, menuID).Scan(&min)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return min, nil
}
