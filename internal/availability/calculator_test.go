package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
)

func testSnapshot() catalog.Snapshot {
	return catalog.Snapshot{
		Products: []catalog.Product{
			{ID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 10},
			{ID: 2, Name: "Grigliata mista", Category: catalog.CategoryFood, Quantity: 4},
			{ID: 3, Name: "Birra media", Category: catalog.CategoryDrink, Quantity: 100},
		},
		Menus: []catalog.CompositeMenu{
			{ID: 10, Name: "Menu completo", Items: []int64{1, 2}, MinQuantity: 4},
		},
	}
}

func TestComputeWithEmptyCart(t *testing.T) {
	result := Compute(testSnapshot(), nil)

	assert.Equal(t, int64(10), result.Products[1])
	assert.Equal(t, int64(4), result.Products[2])
	// The menu is bounded by its scarsest component.
	assert.Equal(t, int64(4), result.Menus[10])
}

func TestCartDirectLinesReduceAvailability(t *testing.T) {
	cart := Cart{{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 3}}
	result := Compute(testSnapshot(), cart)

	assert.Equal(t, int64(7), result.Products[1])
	// The menu shares the component, so its ceiling drops too.
	assert.Equal(t, int64(4), result.Menus[10])
}

func TestCompositeLinesClaimComponents(t *testing.T) {
	cart := Cart{{RefID: 10, Name: "Menu completo", Category: catalog.CategoryComposite, Quantity: 3}}
	result := Compute(testSnapshot(), cart)

	// Each menu unit claims one of every component.
	assert.Equal(t, int64(7), result.Products[1])
	assert.Equal(t, int64(1), result.Products[2])
	assert.Equal(t, int64(1), result.Menus[10])
}

func TestAvailabilityClampsAtZero(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Products[1].Quantity = -2 // oversold under concurrency

	cart := Cart{{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 20}}
	result := Compute(snapshot, cart)

	assert.Equal(t, int64(0), result.Products[1])
	assert.Equal(t, int64(0), result.Products[2])
	assert.Equal(t, int64(0), result.Menus[10])
}

func TestMenuFallsBackToCachedMinimum(t *testing.T) {
	snapshot := testSnapshot()
	// Menu references a product that no longer exists.
	snapshot.Menus[0].Items = []int64{1, 99}
	snapshot.Menus[0].MinQuantity = 3

	cart := Cart{{RefID: 10, Name: "Menu completo", Category: catalog.CategoryComposite, Quantity: 2}}
	result := Compute(snapshot, cart)

	assert.Equal(t, int64(1), result.Menus[10])
}

func TestEmptyMenuIsNeverAvailable(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Menus[0].Items = nil

	result := Compute(snapshot, nil)
	assert.Equal(t, int64(0), result.Menus[10])
}

func TestCartMergesByNameAndCategory(t *testing.T) {
	var cart Cart
	cart = cart.Add(CartLine{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 1})
	cart = cart.Add(CartLine{RefID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, Quantity: 2})
	cart = cart.Add(CartLine{RefID: 3, Name: "Birra media", Category: catalog.CategoryDrink, Quantity: 1})

	assert.Len(t, cart, 2)
	assert.Equal(t, int64(3), cart[0].Quantity)
}
