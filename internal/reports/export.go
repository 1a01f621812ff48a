package reports

import (
	"encoding/csv"
	"io"
	"strconv"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// The festival runs in Italy; exported figures follow Italian conventions.
var printer = message.NewPrinter(language.Italian)

func formatEuros(cents int64) string {
	amount := currency.EUR.Amount(float64(cents) / 100)
	return printer.Sprint(currency.Symbol(amount))
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// WriteDashboardCSV serialises the full report bundle to CSV, one section
// per report, for the organisers' spreadsheets.
func WriteDashboardCSV(w io.Writer, d Dashboard) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	records := [][]string{
		{"Metric", "Value"},
		{"Orders", formatInt(d.Summary.OrderCount)},
		{"Staff Orders", formatInt(d.Summary.StaffOrderCount)},
		{"Revenue", formatEuros(d.Summary.RevenueCents)},
		{"Average Order", formatEuros(d.Summary.AverageOrderCents)},
		{},
		{"Product", "Category", "Units Sold", "Revenue"},
	}
	for _, p := range d.TopProducts {
		records = append(records, []string{p.Name, p.Category, formatInt(p.UnitsSold), formatEuros(p.RevenueCents)})
	}
	records = append(records, []string{}, []string{"Category", "Units Sold", "Revenue"})
	for _, c := range d.Categories {
		records = append(records, []string{c.Category, formatInt(c.UnitsSold), formatEuros(c.RevenueCents)})
	}
	records = append(records, []string{}, []string{"Product", "Category", "Units Sold", "Remaining Stock"})
	for _, line := range d.Inventory {
		records = append(records, []string{line.Name, line.Category, formatInt(line.UnitsSold), formatInt(line.Remaining)})
	}

	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
