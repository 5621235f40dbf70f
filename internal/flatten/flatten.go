// Package flatten turns WooCommerce orders into per-line-item output rows
// with the derived cost-of-goods-sold column.
package flatten

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"wc-export/internal/cost"
	"wc-export/internal/model"
)

// Warning flags a row whose cost had to fall back to the default, so COGS
// totals stay auditable.
type Warning struct {
	OrderID int64
	SKU     string
	Reason  string
}

func (w Warning) String() string {
	return fmt.Sprintf("order %d sku %q: %s", w.OrderID, w.SKU, w.Reason)
}

// Flatten produces one output row per line item, preserving line-item order.
// line_COGS = unit cost × quantity; items the source cannot price use
// defaultCost and are flagged with a warning. An order with zero line items
// yields zero rows.
//
// The order must already be validated; Flatten does not re-check required
// fields. A source error aborts the flatten (it means the store call
// failed, not that a SKU is unknown).
func Flatten(ctx context.Context, order *model.Order, source cost.Source, defaultCost decimal.Decimal) ([]model.OutputRow, []Warning, error) {
	if len(order.LineItems) == 0 {
		return nil, nil, nil
	}

	shipping := order.ShippingPaid()
	taxes := order.TaxesPaid()

	rows := make([]model.OutputRow, 0, len(order.LineItems))
	var warnings []Warning

	for _, item := range order.LineItems {
		unitCost, found, err := source.Cost(ctx, item)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving cost for sku %q: %w", item.SKU, err)
		}
		if !found {
			unitCost = defaultCost
			warnings = append(warnings, Warning{
				OrderID: order.ID,
				SKU:     item.SKU,
				Reason:  fmt.Sprintf("no cost entry, using default %s", model.FormatAmount(defaultCost)),
			})
		}

		rows = append(rows, model.OutputRow{
			OrderID:      order.ID,
			OrderDate:    order.DateCreated,
			CustomerID:   order.CustomerID,
			SKU:          item.SKU,
			Quantity:     item.Quantity,
			LineTotal:    model.ParseAmount(item.Total),
			ProductCost:  unitCost,
			LineCOGS:     unitCost.Mul(decimal.NewFromInt(int64(item.Quantity))),
			OrderStatus:  order.Status,
			ShippingPaid: shipping,
			TaxesPaid:    taxes,
		})
	}

	return rows, warnings, nil
}
