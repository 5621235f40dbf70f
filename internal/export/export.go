// Package export orchestrates the order export pipeline: fetch, flatten,
// write CSV, optionally push to Google Sheets.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"wc-export/internal/cost"
	"wc-export/internal/csvout"
	"wc-export/internal/flatten"
	"wc-export/internal/model"
)

// Fetcher is the slice of the commerce client the runner needs.
type Fetcher interface {
	FetchAllOrders(ctx context.Context, after, status string) ([]model.Order, error)
}

// Uploader pushes the finished records to a spreadsheet. Nil disables upload.
type Uploader interface {
	Upload(ctx context.Context, worksheet string, records [][]string) error
}

// Runner holds the wired pipeline dependencies for one export.
type Runner struct {
	Fetcher     Fetcher
	Costs       cost.Source
	DefaultCost decimal.Decimal

	After  string // ISO8601 lower bound on order date, empty for all
	Status string // order status filter, empty for all

	OutputPath string

	Uploader  Uploader
	Worksheet string

	Logger *slog.Logger
}

// Summary reports what one export run did.
type Summary struct {
	OrdersFetched int
	OrdersSkipped int
	RowsWritten   int
	CSVPath       string
	Uploaded      bool
	Warnings      []string
}

// Run executes the pipeline. The CSV file is the primary artifact: a fetch
// or write failure is fatal, a Sheets failure only downgrades the run with
// a warning since the CSV already exists on disk.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	log.Info("fetching orders", "after", r.After, "status", r.Status)
	orders, err := r.Fetcher.FetchAllOrders(ctx, r.After, r.Status)
	if err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}
	log.Info("orders fetched", "count", len(orders))

	summary := &Summary{
		OrdersFetched: len(orders),
		CSVPath:       r.OutputPath,
	}

	var rows []model.OutputRow
	for i := range orders {
		order := &orders[i]
		if verr := order.Validate(); verr != nil {
			summary.OrdersSkipped++
			warn := fmt.Sprintf("skipping malformed order %d: %v", order.ID, verr)
			summary.Warnings = append(summary.Warnings, warn)
			log.Warn("skipping malformed order", "order_id", order.ID, "reason", verr)
			continue
		}

		orderRows, warnings, ferr := flatten.Flatten(ctx, order, r.Costs, r.DefaultCost)
		if ferr != nil {
			return nil, fmt.Errorf("flattening order %d: %w", order.ID, ferr)
		}
		for _, w := range warnings {
			summary.Warnings = append(summary.Warnings, w.String())
			log.Warn("cost fallback", "order_id", w.OrderID, "sku", w.SKU, "reason", w.Reason)
		}
		rows = append(rows, orderRows...)
	}

	// Stable sort keeps line items in their original order within an
	// order, so the same input always produces the same file.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].OrderID < rows[j].OrderID
	})

	if err := csvout.Write(r.OutputPath, rows); err != nil {
		return nil, err
	}
	summary.RowsWritten = len(rows)
	log.Info("csv written", "path", r.OutputPath, "rows", len(rows))

	if r.Uploader != nil {
		if uerr := r.Uploader.Upload(ctx, r.Worksheet, csvout.Records(rows)); uerr != nil {
			warn := fmt.Sprintf("sheets upload failed: %v", uerr)
			summary.Warnings = append(summary.Warnings, warn)
			log.Warn("sheets upload failed", "error", uerr)
		} else {
			summary.Uploaded = true
			log.Info("sheets upload complete", "worksheet", r.Worksheet, "rows", len(rows)+1)
		}
	}

	return summary, nil
}
