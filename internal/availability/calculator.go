// Package availability computes how many units of each catalog entry the
// register may still sell, given current stock and the contents of the cart
// being built. The computation is pure: it reads a catalog snapshot and a
// cart and returns numbers, leaving persistence to the reconciler.
package availability

import "github.com/sagra-pos/sagra-pos/internal/catalog"

// CartLine is one merged entry of the in-progress cart.
type CartLine struct {
	RefID    int64            `json:"ref_id"`
	Name     string           `json:"name"`
	Category catalog.Category `json:"category"`
	Quantity int64            `json:"quantity"`
}

// Cart is the register's in-progress order, merged by (name, category):
// adding an entry that matches an existing line bumps its quantity instead
// of appending a duplicate.
type Cart []CartLine

// Add merges a line into the cart.
func (c Cart) Add(line CartLine) Cart {
	for i := range c {
		if c[i].Name == line.Name && c[i].Category == line.Category {
			c[i].Quantity += line.Quantity
			return c
		}
	}
	return append(c, line)
}

// Result maps catalog ids to the number of units still sellable. Values are
// never negative; oversold stock shows as zero.
type Result struct {
	Products map[int64]int64 `json:"products"`
	Menus    map[int64]int64 `json:"menus"`
}

// Compute derives availability for every product and menu in the snapshot.
//
// A product's availability is its stock minus everything the cart already
// claims, counting both direct lines and the one-unit-per-component demand
// of composite lines. A menu's availability is the minimum over its
// components' availability; a menu whose component list cannot be resolved
// against the snapshot falls back to its cached minimum minus the cart's
// demand for the menu itself. All results clamp at zero.
func Compute(snapshot catalog.Snapshot, cart Cart) Result {
	demand := cartDemand(snapshot, cart)

	result := Result{
		Products: make(map[int64]int64, len(snapshot.Products)),
		Menus:    make(map[int64]int64, len(snapshot.Menus)),
	}
	for _, p := range snapshot.Products {
		result.Products[p.ID] = clamp(p.Quantity - demand[p.ID])
	}
	for _, m := range snapshot.Menus {
		result.Menus[m.ID] = menuAvailability(snapshot, m, cart, demand)
	}
	return result
}

// cartDemand folds the cart into per-product claimed quantities, expanding
// composite lines into their components.
func cartDemand(snapshot catalog.Snapshot, cart Cart) map[int64]int64 {
	demand := make(map[int64]int64)
	for _, line := range cart {
		switch line.Category {
		case catalog.CategoryComposite:
			menu, ok := snapshot.MenuByID(line.RefID)
			if !ok {
				continue
			}
			for _, productID := range menu.Items {
				demand[productID] += line.Quantity
			}
		default:
			demand[line.RefID] += line.Quantity
		}
	}
	return demand
}

func menuAvailability(snapshot catalog.Snapshot, menu catalog.CompositeMenu, cart Cart, demand map[int64]int64) int64 {
	if len(menu.Items) == 0 {
		return 0
	}
	available := int64(-1)
	for _, productID := range menu.Items {
		p, ok := snapshot.ProductByID(productID)
		if !ok {
			// Component no longer in the catalog; trust the cached
			// minimum rather than inventing a stock figure.
			return clamp(menu.MinQuantity - menuCartQuantity(cart, menu))
		}
		remaining := p.Quantity - demand[productID]
		if available < 0 || remaining < available {
			available = remaining
		}
	}
	return clamp(available)
}

func menuCartQuantity(cart Cart, menu catalog.CompositeMenu) int64 {
	var total int64
	for _, line := range cart {
		if line.Category == catalog.CategoryComposite && line.RefID == menu.ID {
			total += line.Quantity
		}
	}
	return total
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
