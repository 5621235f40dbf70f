// Package csvout writes flattened order rows to the orders.csv artifact.
package csvout

import (
	"encoding/csv"
	"fmt"
	"os"

	"wc-export/internal/model"
)

// Header is the fixed column order of the output file.
var Header = []string{
	"order_id",
	"order_date",
	"customer_id",
	"line_item_sku",
	"line_item_quantity",
	"line_item_total",
	"product_cost",
	"line_COGS",
	"order_status",
	"shipping_paid",
	"taxes_paid",
}

// Write creates (or truncates) path and writes the header plus one record
// per row. Zero rows still produce a header-only file; an empty export is
// a valid artifact, not an error.
func Write(path string, rows []model.OutputRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range rows {
		if err := w.Write(rows[i].Strings()); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

// Records renders header plus rows as string slices, the shape the Sheets
// uploader consumes.
func Records(rows []model.OutputRow) [][]string {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, Header)
	for i := range rows {
		records = append(records, rows[i].Strings())
	}
	return records
}
