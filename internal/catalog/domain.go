package catalog

import "time"

// Category groups products for display and for kitchen filtering.
type Category string

const (
	// CategoryFood marks products prepared by the kitchen.
	CategoryFood Category = "food"
	// CategoryDrink marks beverages; orders made only of these skip the kitchen.
	CategoryDrink Category = "drink"
	// CategoryComposite is used on order lines referencing a composite menu.
	CategoryComposite Category = "composite"
)

// Product is a single sellable item with a live stock quantity. Quantity is
// mutated only through atomic deltas and manual edits; it may go negative
// when two registers sell the last unit concurrently.
type Product struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Category   Category   `json:"category"`
	PriceCents int64      `json:"price_cents"`
	Quantity   int64      `json:"quantity"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// CompositeMenu bundles one unit of each referenced product and is sold as a
// unit. MinQuantity caches min(stock) across the referenced products; it is
// recomputed after every write that can invalidate it.
type CompositeMenu struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	PriceCents  int64      `json:"price_cents"`
	Items       []int64    `json:"items"`
	MinQuantity int64      `json:"min_quantity"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Snapshot is a point-in-time view of the whole catalog, ordered by
// creation time, as served to the register terminal.
type Snapshot struct {
	Products []Product       `json:"products"`
	Menus    []CompositeMenu `json:"menus"`
}

// ProductByID indexes the snapshot's products.
func (s Snapshot) ProductByID(id int64) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// MenuByID indexes the snapshot's composite menus.
func (s Snapshot) MenuByID(id int64) (CompositeMenu, bool) {
	for _, m := range s.Menus {
		if m.ID == id {
			return m, true
		}
	}
	return CompositeMenu{}, false
}
