package transfer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/orders"
)

func archiveFixture() Archive {
	created := time.Date(2026, 8, 29, 18, 30, 0, 0, time.UTC)
	completed := created.Add(12 * time.Minute)
	return Archive{
		Products: []catalog.Product{
			{ID: 1, Name: "Pasta al ragù", Category: catalog.CategoryFood, PriceCents: 750, Quantity: 40},
			{ID: 2, Name: "Vino della casa", Category: catalog.CategoryDrink, PriceCents: 600, Quantity: 12},
		},
		Menus: []catalog.CompositeMenu{
			{ID: 5, Name: "Menu completo", PriceCents: 1200, Items: []int64{1, 2}},
		},
		Orders: []orders.Order{
			{
				ID:          "4f4d2b9e-6f1a-4d37-9a6e-0c5a4f9b1c2d",
				OrderNumber: 17,
				Status:      orders.StatusReady,
				Staff:       false,
				TotalCents:  1950,
				CreatedAt:   created,
				UpdatedAt:   completed,
				CompletedAt: &completed,
				Items: []orders.Item{
					{RefID: 5, Name: "Menu completo", PriceCents: 1200, Quantity: 1, Category: catalog.CategoryComposite},
					{RefID: 1, Name: "Pasta al ragù", PriceCents: 750, Quantity: 1, Category: catalog.CategoryFood},
				},
			},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, archiveFixture()))

	got, err := Read(&buf)
	require.NoError(t, err)

	require.Len(t, got.Products, 2)
	assert.Equal(t, "Pasta al ragù", got.Products[0].Name)
	assert.Equal(t, int64(40), got.Products[0].Quantity)

	require.Len(t, got.Menus, 1)
	assert.Equal(t, []int64{1, 2}, got.Menus[0].Items)

	require.Len(t, got.Orders, 1)
	o := got.Orders[0]
	assert.Equal(t, int64(17), o.OrderNumber)
	assert.Equal(t, orders.StatusReady, o.Status)
	assert.Equal(t, int64(1950), o.TotalCents)
	require.NotNil(t, o.CompletedAt)
	assert.Nil(t, o.DeliveredAt)
	require.Len(t, o.Items, 2)
	assert.Equal(t, catalog.CategoryComposite, o.Items[0].Category)
	assert.Equal(t, "Pasta al ragù", o.Items[1].Name)
}

func TestReadAttachesRowsInAnyOrder(t *testing.T) {
	// Item rows arrive before their parents and out of position order.
	doc := strings.Join([]string{
		"menu_item,5,2,1",
		"order_item,ord-1,1,Pasta al ragù,750,2,food,1",
		"order_item,ord-1,2,Vino della casa,600,1,drink,0",
		"menu_item,5,1,0",
		"product,1,Pasta al ragù,food,750,40",
		"product,2,Vino della casa,drink,600,12",
		"menu,5,Menu completo,1200",
		"order,ord-1,3,in_preparation,false,2100,2026-08-29T18:30:00Z,2026-08-29T18:30:00Z,,",
	}, "\n")

	got, err := Read(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, got.Menus, 1)
	assert.Equal(t, []int64{1, 2}, got.Menus[0].Items)

	require.Len(t, got.Orders, 1)
	require.Len(t, got.Orders[0].Items, 2)
	assert.Equal(t, "Vino della casa", got.Orders[0].Items[0].Name)
	assert.Equal(t, "Pasta al ragù", got.Orders[0].Items[1].Name)
}

func TestReadRejectsMalformedRows(t *testing.T) {
	cases := map[string]string{
		"unknown tag":      "dessert,1,Tiramisù,400",
		"bad category":     "product,1,Pasta,sweet,750,40",
		"bad status":       "order,ord-1,3,paid,false,2100,2026-08-29T18:30:00Z,2026-08-29T18:30:00Z,,",
		"truncated fields": "product,1,Pasta",
		"orphan item":      "order_item,ghost,1,Pasta al ragù,750,1,food,0",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}
