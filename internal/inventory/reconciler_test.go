package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
)

type mockStock struct {
	mu     sync.Mutex
	stocks map[int64]int64
	menus  map[int64]catalog.CompositeMenu

	failProducts map[int64]bool
	recomputed   []int64
	minCache     map[int64]int64
}

func newMockStock() *mockStock {
	return &mockStock{
		stocks: map[int64]int64{
			1: 10, // pasta
			2: 5,  // grigliata
			3: 50, // birra
		},
		menus: map[int64]catalog.CompositeMenu{
			10: {ID: 10, Name: "Menu completo", Items: []int64{1, 2}},
		},
		failProducts: map[int64]bool{},
		minCache:     map[int64]int64{},
	}
}

func (m *mockStock) ApplyStockDelta(ctx context.Context, productID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failProducts[productID] {
		return errors.New("product vanished")
	}
	m.stocks[productID] += delta
	return nil
}

func (m *mockStock) MenusByIDs(ctx context.Context, ids []int64) (map[int64]catalog.CompositeMenu, error) {
	result := make(map[int64]catalog.CompositeMenu)
	for _, id := range ids {
		if menu, ok := m.menus[id]; ok {
			result[id] = menu
		}
	}
	return result, nil
}

func (m *mockStock) MenusReferencing(ctx context.Context, productIDs []int64) ([]int64, error) {
	seen := map[int64]bool{}
	var result []int64
	for _, productID := range productIDs {
		for menuID, menu := range m.menus {
			for _, item := range menu.Items {
				if item == productID && !seen[menuID] {
					seen[menuID] = true
					result = append(result, menuID)
				}
			}
		}
	}
	return result, nil
}

func (m *mockStock) RecomputeMinQuantity(ctx context.Context, menuID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputed = append(m.recomputed, menuID)
	menu := m.menus[menuID]
	min := int64(0)
	for i, productID := range menu.Items {
		stock := m.stocks[productID]
		if i == 0 || stock < min {
			min = stock
		}
	}
	m.minCache[menuID] = min
	return min, nil
}

func newTestReconciler(store StockPort) *Reconciler {
	return NewReconciler(store, slog.New(slog.DiscardHandler))
}

func TestApplyDecrementsDirectLines(t *testing.T) {
	store := newMockStock()
	r := newTestReconciler(store)

	err := r.Apply(context.Background(), "o1", []OrderLine{
		{RefID: 1, Category: catalog.CategoryFood, Quantity: 2},
		{RefID: 3, Category: catalog.CategoryDrink, Quantity: 4},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(8), store.stocks[1])
	assert.Equal(t, int64(46), store.stocks[3])
	assert.Equal(t, int64(5), store.stocks[2], "untouched product keeps its stock")
}

func TestApplyExpandsCompositeLines(t *testing.T) {
	store := newMockStock()
	r := newTestReconciler(store)

	err := r.Apply(context.Background(), "o2", []OrderLine{
		{RefID: 10, Category: catalog.CategoryComposite, Quantity: 3},
	})
	require.NoError(t, err)

	// One of each component per menu sold.
	assert.Equal(t, int64(7), store.stocks[1])
	assert.Equal(t, int64(2), store.stocks[2])
	assert.Contains(t, store.recomputed, int64(10))
}

func TestApplyMergesDirectAndCompositeDemand(t *testing.T) {
	store := newMockStock()
	r := newTestReconciler(store)

	err := r.Apply(context.Background(), "o3", []OrderLine{
		{RefID: 1, Category: catalog.CategoryFood, Quantity: 1},
		{RefID: 10, Category: catalog.CategoryComposite, Quantity: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), store.stocks[1])
	assert.Equal(t, int64(3), store.stocks[2])
}

func TestApplyAllowsNegativeStock(t *testing.T) {
	store := newMockStock()
	r := newTestReconciler(store)

	err := r.Apply(context.Background(), "o4", []OrderLine{
		{RefID: 2, Category: catalog.CategoryFood, Quantity: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-4), store.stocks[2])
}

func TestApplySkipsFailedLines(t *testing.T) {
	store := newMockStock()
	store.failProducts[1] = true
	r := newTestReconciler(store)

	err := r.Apply(context.Background(), "o5", []OrderLine{
		{RefID: 1, Category: catalog.CategoryFood, Quantity: 2},
		{RefID: 3, Category: catalog.CategoryDrink, Quantity: 1},
	})
	require.NoError(t, err)

	// The failing line is skipped, the rest of the order still lands.
	assert.Equal(t, int64(10), store.stocks[1])
	assert.Equal(t, int64(49), store.stocks[3])
}

func TestApplySkipsVanishedMenus(t *testing.T) {
	store := newMockStock()
	r := newTestReconciler(store)

	err := r.Apply(context.Background(), "o6", []OrderLine{
		{RefID: 99, Category: catalog.CategoryComposite, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), store.stocks[1])
	assert.Empty(t, store.recomputed)
}

func TestRandomOrderSequencesKeepMenuAvailabilityConsistent(t *testing.T) {
	store := newMockStock()
	store.menus[11] = catalog.CompositeMenu{ID: 11, Name: "Menu della casa", Items: []int64{1, 3}}
	r := newTestReconciler(store)

	ctx := context.Background()
	for id := range store.menus {
		_, err := store.RecomputeMinQuantity(ctx, id)
		require.NoError(t, err)
	}

	candidates := []OrderLine{
		{RefID: 1, Category: catalog.CategoryFood},
		{RefID: 2, Category: catalog.CategoryFood},
		{RefID: 3, Category: catalog.CategoryDrink},
		{RefID: 10, Category: catalog.CategoryComposite},
		{RefID: 11, Category: catalog.CategoryComposite},
	}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		var lines []OrderLine
		for j := 0; j < 1+rng.Intn(3); j++ {
			line := candidates[rng.Intn(len(candidates))]
			line.Quantity = int64(1 + rng.Intn(4))
			lines = append(lines, line)
		}
		require.NoError(t, r.Apply(ctx, fmt.Sprintf("order-%d", i), lines))

		// The cached availability of every menu must equal the minimum
		// stock over its components after each reconcile, even once
		// stocks have gone negative.
		for menuID, menu := range store.menus {
			expected := int64(0)
			for k, productID := range menu.Items {
				stock := store.stocks[productID]
				if k == 0 || stock < expected {
					expected = stock
				}
			}
			require.Equal(t, expected, store.minCache[menuID],
				"menu %d after order %d", menuID, i)
		}
	}
}

func TestApplyNeverIncreasesStock(t *testing.T) {
	store := newMockStock()
	r := newTestReconciler(store)
	before := map[int64]int64{}
	for id, stock := range store.stocks {
		before[id] = stock
	}

	lines := []OrderLine{
		{RefID: 1, Category: catalog.CategoryFood, Quantity: 1},
		{RefID: 2, Category: catalog.CategoryFood, Quantity: 2},
		{RefID: 10, Category: catalog.CategoryComposite, Quantity: 1},
	}
	require.NoError(t, r.Apply(context.Background(), "o7", lines))

	for id, stock := range store.stocks {
		assert.LessOrEqual(t, stock, before[id], "product %d", id)
	}
}
