package reports

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDashboardCSVSections(t *testing.T) {
	dashboard := Dashboard{
		Summary: Summary{OrderCount: 42, RevenueCents: 68250, AverageOrderCents: 1706, StaffOrderCount: 2},
		TopProducts: []ProductSales{
			{Name: "Pasta al ragù", Category: "food", UnitsSold: 61, RevenueCents: 45750},
		},
		Categories: []CategorySplit{
			{Category: "food", UnitsSold: 80, RevenueCents: 60000},
		},
		Inventory: []InventoryLine{
			{Name: "Pasta al ragù", Category: "food", UnitsSold: 61, Remaining: 19},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDashboardCSV(&buf, dashboard))

	reader := csv.NewReader(&buf)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	// Blank separator lines are skipped by the reader: header plus four
	// summary rows, then one header and one row per section.
	require.Len(t, records, 11)
	assert.Equal(t, []string{"Metric", "Value"}, records[0])
	assert.Equal(t, "42", records[1][1])
	assert.Equal(t, "Pasta al ragù", records[6][0])
	assert.Equal(t, "61", records[6][2])
	assert.Equal(t, "19", records[10][3])
}
