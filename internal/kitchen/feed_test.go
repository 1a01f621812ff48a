package kitchen

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/orders"
)

type mockOrders struct {
	orders []orders.Order
}

func (m *mockOrders) List(ctx context.Context, req orders.ListRequest) ([]orders.Order, error) {
	var result []orders.Order
	for _, o := range m.orders {
		if len(req.Statuses) == 0 {
			result = append(result, o)
			continue
		}
		for _, s := range req.Statuses {
			if o.Status == s {
				result = append(result, o)
				break
			}
		}
	}
	if req.OrderBy == orders.OrderByCompletedAsc {
		sort.SliceStable(result, func(i, j int) bool {
			a, b := result[i].CompletedAt, result[j].CompletedAt
			if a == nil || b == nil {
				return b == nil && a != nil
			}
			return a.Before(*b)
		})
	}
	return result, nil
}

type mockResolver struct {
	menus    map[int64]catalog.CompositeMenu
	products map[int64]catalog.Product
}

func (m *mockResolver) MenusByIDs(ctx context.Context, ids []int64) (map[int64]catalog.CompositeMenu, error) {
	result := make(map[int64]catalog.CompositeMenu)
	for _, id := range ids {
		if menu, ok := m.menus[id]; ok {
			result[id] = menu
		}
	}
	return result, nil
}

func (m *mockResolver) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]catalog.Product, error) {
	result := make(map[int64]catalog.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

type mockSelectionReader struct {
	marks      map[string][]string
	pruneCalls [][]string
}

func (m *mockSelectionReader) List(ctx context.Context, orderID string) ([]string, error) {
	return m.marks[orderID], nil
}

func (m *mockSelectionReader) Prune(ctx context.Context, activeOrderIDs []string) (int, error) {
	m.pruneCalls = append(m.pruneCalls, activeOrderIDs)
	return 0, nil
}

func at(minute int) time.Time {
	return time.Date(2026, 8, 29, 19, minute, 0, 0, time.UTC)
}

func atPtr(minute int) *time.Time {
	t := at(minute)
	return &t
}

func newTestFeed(ordersPort OrdersPort, selections SelectionPort) *Feed {
	resolver := &mockResolver{
		menus: map[int64]catalog.CompositeMenu{
			10: {ID: 10, Name: "Menu completo", Items: []int64{1, 2}},
		},
		products: map[int64]catalog.Product{
			1: {ID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood},
			2: {ID: 2, Name: "Birra media", Category: catalog.CategoryDrink},
		},
	}
	return NewFeed(ordersPort, resolver, selections, slog.New(slog.DiscardHandler))
}

func TestQueueFiltersDrinksAndExpandsMenus(t *testing.T) {
	ordersPort := &mockOrders{orders: []orders.Order{
		{
			ID: "o1", OrderNumber: 1, Status: orders.StatusInPreparation, CreatedAt: at(0),
			Items: []orders.Item{
				{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 1},
				{RefID: 2, Name: "Birra media", Category: catalog.CategoryDrink, Quantity: 2},
				{RefID: 10, Name: "Menu completo", Category: catalog.CategoryComposite, Quantity: 2},
			},
		},
	}}
	selections := &mockSelectionReader{marks: map[string][]string{"o1": {"Pasta al ragù"}}}
	feed := newTestFeed(ordersPort, selections)

	tickets, err := feed.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	// The direct pasta line and the menu's pasta component merge; the
	// drink component and the beverage line disappear.
	require.Len(t, tickets[0].Dishes, 1)
	assert.Equal(t, "Pasta al ragù", tickets[0].Dishes[0].Name)
	assert.Equal(t, int64(3), tickets[0].Dishes[0].Quantity)
	assert.True(t, tickets[0].Dishes[0].Selected)
}

func TestQueueOrdering(t *testing.T) {
	ordersPort := &mockOrders{orders: []orders.Order{
		{ID: "prep-late", OrderNumber: 3, Status: orders.StatusInPreparation, CreatedAt: at(10),
			Items: []orders.Item{{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 1}}},
		{ID: "prep-early", OrderNumber: 1, Status: orders.StatusInPreparation, CreatedAt: at(5),
			Items: []orders.Item{{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 1}}},
		{ID: "ready-old", OrderNumber: 2, Status: orders.StatusReady, CreatedAt: at(0), CompletedAt: atPtr(7),
			Items: []orders.Item{{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 1}}},
		{ID: "ready-new", OrderNumber: 4, Status: orders.StatusReady, CreatedAt: at(2), CompletedAt: atPtr(12),
			Items: []orders.Item{{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 1}}},
	}}
	selections := &mockSelectionReader{marks: map[string][]string{}}
	feed := newTestFeed(ordersPort, selections)

	tickets, err := feed.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 4)

	// In preparation first, oldest confirmation leading; then ready,
	// newest completion leading.
	assert.Equal(t, "prep-early", tickets[0].OrderID)
	assert.Equal(t, "prep-late", tickets[1].OrderID)
	assert.Equal(t, "ready-new", tickets[2].OrderID)
	assert.Equal(t, "ready-old", tickets[3].OrderID)
}

func TestQueuePrunesWithActiveOrdersOnly(t *testing.T) {
	ordersPort := &mockOrders{orders: []orders.Order{
		{ID: "prep", OrderNumber: 1, Status: orders.StatusInPreparation, CreatedAt: at(0),
			Items: []orders.Item{{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 1}}},
		{ID: "ready", OrderNumber: 2, Status: orders.StatusReady, CreatedAt: at(1), CompletedAt: atPtr(3),
			Items: []orders.Item{{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 1}}},
	}}
	selections := &mockSelectionReader{marks: map[string][]string{}}
	feed := newTestFeed(ordersPort, selections)

	_, err := feed.Queue(context.Background())
	require.NoError(t, err)

	require.Len(t, selections.pruneCalls, 1)
	assert.Equal(t, []string{"prep"}, selections.pruneCalls[0])
}

func TestQueueOmitsOrdersWithNothingToCook(t *testing.T) {
	ordersPort := &mockOrders{orders: []orders.Order{
		{ID: "drinks", OrderNumber: 1, Status: orders.StatusInPreparation, CreatedAt: at(0),
			Items: []orders.Item{{RefID: 2, Name: "Birra media", Category: catalog.CategoryDrink, Quantity: 2}}},
	}}
	selections := &mockSelectionReader{marks: map[string][]string{}}
	feed := newTestFeed(ordersPort, selections)

	tickets, err := feed.Queue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestQueueKeepsUnresolvableMenuLine(t *testing.T) {
	ordersPort := &mockOrders{orders: []orders.Order{
		{ID: "o1", OrderNumber: 1, Status: orders.StatusInPreparation, CreatedAt: at(0),
			Items: []orders.Item{{RefID: 77, Name: "Menu di ieri", Category: catalog.CategoryComposite, Quantity: 1}}},
	}}
	selections := &mockSelectionReader{marks: map[string][]string{}}
	feed := newTestFeed(ordersPort, selections)

	tickets, err := feed.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.Len(t, tickets[0].Dishes, 1)
	assert.Equal(t, "Menu di ieri", tickets[0].Dishes[0].Name)
}

func TestDeliveryQueueOrdersByCompletion(t *testing.T) {
	ordersPort := &mockOrders{orders: []orders.Order{
		{ID: "late", OrderNumber: 2, Status: orders.StatusReady, CompletedAt: atPtr(10)},
		{ID: "early", OrderNumber: 1, Status: orders.StatusReady, CompletedAt: atPtr(5)},
	}}
	selections := &mockSelectionReader{marks: map[string][]string{}}
	feed := newTestFeed(ordersPort, selections)

	tickets, err := feed.DeliveryQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "early", tickets[0].OrderID)
	assert.Equal(t, "late", tickets[1].OrderID)
}
