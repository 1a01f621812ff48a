package kitchen

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/orders"
)

// OrdersPort is the slice of the order store the feed reads.
type OrdersPort interface {
	List(ctx context.Context, req orders.ListRequest) ([]orders.Order, error)
}

// MenuResolver expands composite order lines into their component products.
type MenuResolver interface {
	MenusByIDs(ctx context.Context, ids []int64) (map[int64]catalog.CompositeMenu, error)
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

// SelectionPort reads the shared selection marks.
type SelectionPort interface {
	List(ctx context.Context, orderID string) ([]string, error)
	Prune(ctx context.Context, activeOrderIDs []string) (int, error)
}

// Feed assembles the kitchen and delivery station views.
type Feed struct {
	orders     OrdersPort
	catalog    MenuResolver
	selections SelectionPort
	logger     *slog.Logger
}

// NewFeed constructs a Feed.
func NewFeed(ordersPort OrdersPort, cat MenuResolver, selections SelectionPort, logger *slog.Logger) *Feed {
	return &Feed{orders: ordersPort, catalog: cat, selections: selections, logger: logger}
}

// Dish is one line of a kitchen ticket, grouped by name.
type Dish struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Selected bool   `json:"selected"`
}

// Ticket is one order as the kitchen sees it: food only, composites
// expanded into their component dishes.
type Ticket struct {
	OrderID     string        `json:"order_id"`
	OrderNumber int64         `json:"order_number"`
	Status      orders.Status `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Dishes      []Dish        `json:"dishes"`
}

// Queue returns the kitchen's working view: orders in preparation oldest
// first, then ready orders newest completion first so a just-finished order
// stays visible for corrections. Orders with nothing to cook are omitted.
// After assembling the view it opportunistically prunes selection sets left
// behind by orders that already moved on.
func (f *Feed) Queue(ctx context.Context) ([]Ticket, error) {
	open, err := f.orders.List(ctx, orders.ListRequest{
		Statuses: []orders.Status{orders.StatusInPreparation, orders.StatusReady},
	})
	if err != nil {
		return nil, err
	}

	menus, err := f.resolveMenus(ctx, open)
	if err != nil {
		return nil, err
	}

	var inPrep, ready []Ticket
	var activeIDs []string
	for _, o := range open {
		dishes := f.kitchenDishes(o, menus)
		if len(dishes) == 0 {
			continue
		}
		if o.Status == orders.StatusInPreparation {
			activeIDs = append(activeIDs, o.ID)
		}
		ticket := Ticket{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
			CompletedAt: o.CompletedAt,
			Dishes:      f.markSelected(ctx, o.ID, dishes),
		}
		if o.Status == orders.StatusInPreparation {
			inPrep = append(inPrep, ticket)
		} else {
			ready = append(ready, ticket)
		}
	}

	sort.SliceStable(inPrep, func(i, j int) bool {
		return inPrep[i].CreatedAt.Before(inPrep[j].CreatedAt)
	})
	sort.SliceStable(ready, func(i, j int) bool {
		a, b := ready[i].CompletedAt, ready[j].CompletedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})

	if pruned, err := f.selections.Prune(ctx, activeIDs); err != nil {
		f.logger.Warn("prune selections", slog.Any("error", err))
	} else if pruned > 0 {
		f.logger.Info("pruned stale selections", slog.Int("count", pruned))
	}

	return append(inPrep, ready...), nil
}

// DeliveryTicket is one ready order as the delivery station sees it.
type DeliveryTicket struct {
	OrderID     string        `json:"order_id"`
	OrderNumber int64         `json:"order_number"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Items       []orders.Item `json:"items"`
}

// DeliveryQueue returns ready orders oldest completion first, so the
// station hands out orders in the sequence the kitchen finished them.
func (f *Feed) DeliveryQueue(ctx context.Context) ([]DeliveryTicket, error) {
	ready, err := f.orders.List(ctx, orders.ListRequest{
		Statuses: []orders.Status{orders.StatusReady},
		OrderBy:  orders.OrderByCompletedAsc,
	})
	if err != nil {
		return nil, err
	}
	tickets := make([]DeliveryTicket, 0, len(ready))
	for _, o := range ready {
		tickets = append(tickets, DeliveryTicket{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			CompletedAt: o.CompletedAt,
			Items:       o.Items,
		})
	}
	return tickets, nil
}

// kitchenDishes reduces an order to what the kitchen must cook: drinks are
// dropped, composite lines are replaced by their component products, and
// equal names are merged.
func (f *Feed) kitchenDishes(o orders.Order, menus map[int64]resolvedMenu) []Dish {
	grouped := make(map[string]int64)
	var names []string
	add := func(name string, qty int64) {
		if _, seen := grouped[name]; !seen {
			names = append(names, name)
		}
		grouped[name] += qty
	}

	for _, item := range o.Items {
		switch item.Category {
		case catalog.CategoryDrink:
			continue
		case catalog.CategoryComposite:
			menu, ok := menus[item.RefID]
			if !ok {
				// Components unknown; surface the menu line itself so
				// the ticket is never silently short.
				add(item.Name, item.Quantity)
				continue
			}
			for _, component := range menu.components {
				if component.Category == catalog.CategoryDrink {
					continue
				}
				add(component.Name, item.Quantity)
			}
		default:
			add(item.Name, item.Quantity)
		}
	}

	dishes := make([]Dish, 0, len(names))
	for _, name := range names {
		dishes = append(dishes, Dish{Name: name, Quantity: grouped[name]})
	}
	return dishes
}

type resolvedMenu struct {
	components []catalog.Product
}

func (f *Feed) resolveMenus(ctx context.Context, open []orders.Order) (map[int64]resolvedMenu, error) {
	var menuIDs []int64
	seen := make(map[int64]bool)
	for _, o := range open {
		for _, item := range o.Items {
			if item.Category == catalog.CategoryComposite && !seen[item.RefID] {
				seen[item.RefID] = true
				menuIDs = append(menuIDs, item.RefID)
			}
		}
	}
	if len(menuIDs) == 0 {
		return map[int64]resolvedMenu{}, nil
	}

	menus, err := f.catalog.MenusByIDs(ctx, menuIDs)
	if err != nil {
		return nil, err
	}
	var productIDs []int64
	for _, m := range menus {
		productIDs = append(productIDs, m.Items...)
	}
	products, err := f.catalog.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	resolved := make(map[int64]resolvedMenu, len(menus))
	for id, m := range menus {
		var components []catalog.Product
		for _, productID := range m.Items {
			if p, ok := products[productID]; ok {
				components = append(components, p)
			}
		}
		resolved[id] = resolvedMenu{components: components}
	}
	return resolved, nil
}

func (f *Feed) markSelected(ctx context.Context, orderID string, dishes []Dish) []Dish {
	selected, err := f.selections.List(ctx, orderID)
	if err != nil {
		f.logger.Warn("load selections", slog.String("order_id", orderID), slog.Any("error", err))
		return dishes
	}
	marks := make(map[string]bool, len(selected))
	for _, name := range selected {
		marks[name] = true
	}
	for i := range dishes {
		dishes[i].Selected = marks[dishes[i].Name]
	}
	return dishes
}
