// Package model defines the domain types shared across the exporter:
// WooCommerce order payloads, flattened output rows, money parsing,
// and structured errors.
package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Order mirrors the WooCommerce REST v3 order payload, limited to the
// fields the exporter consumes. Monetary fields arrive as decimal strings.
type Order struct {
	ID            int64          `json:"id"`
	DateCreated   string         `json:"date_created"`
	CustomerID    int64          `json:"customer_id"`
	Status        string         `json:"status"`
	Currency      string         `json:"currency"`
	Total         string         `json:"total"`
	TotalTax      string         `json:"total_tax"`
	ShippingTotal string         `json:"shipping_total"`
	LineItems     []LineItem     `json:"line_items"`
	ShippingLines []ShippingLine `json:"shipping_lines"`
	TaxLines      []TaxLine      `json:"tax_lines"`
}

// LineItem is one product entry within an order.
type LineItem struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	Total       string `json:"total"`
}

// ShippingLine is one shipping charge on an order.
type ShippingLine struct {
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}

// TaxLine is one tax entry on an order. WooCommerce reports the tax amount
// in tax_total (there is no plain "total" field on tax lines).
type TaxLine struct {
	Label            string `json:"label"`
	TaxTotal         string `json:"tax_total"`
	ShippingTaxTotal string `json:"shipping_tax_total"`
}

// Validate reports whether the order carries the fields every output row
// depends on. Orders failing validation are skipped, not fatal.
func (o *Order) Validate() error {
	if o.ID == 0 {
		return fmt.Errorf("order has no id")
	}
	if o.DateCreated == "" {
		return fmt.Errorf("order %d has no creation date", o.ID)
	}
	return nil
}

// ShippingPaid sums the shipping line totals. Falls back to the order-level
// shipping_total when no shipping lines are present.
func (o *Order) ShippingPaid() decimal.Decimal {
	if len(o.ShippingLines) == 0 {
		return ParseAmount(o.ShippingTotal)
	}
	sum := decimal.Zero
	for _, sl := range o.ShippingLines {
		sum = sum.Add(ParseAmount(sl.Total))
	}
	return sum
}

// TaxesPaid sums the tax line totals. Falls back to the order-level
// total_tax when no tax lines are present.
func (o *Order) TaxesPaid() decimal.Decimal {
	if len(o.TaxLines) == 0 {
		return ParseAmount(o.TotalTax)
	}
	sum := decimal.Zero
	for _, tl := range o.TaxLines {
		sum = sum.Add(ParseAmount(tl.TaxTotal))
	}
	return sum
}

// OutputRow is one flattened (order, line item) pair with the derived
// cost-of-goods-sold column. Field order matches the CSV header.
type OutputRow struct {
	OrderID      int64
	OrderDate    string
	CustomerID   int64
	SKU          string
	Quantity     int
	LineTotal    decimal.Decimal
	ProductCost  decimal.Decimal
	LineCOGS     decimal.Decimal
	OrderStatus  string
	ShippingPaid decimal.Decimal
	TaxesPaid    decimal.Decimal
}

// Strings renders the row as CSV fields in header order.
func (r *OutputRow) Strings() []string {
	return []string{
		fmt.Sprintf("%d", r.OrderID),
		r.OrderDate,
		fmt.Sprintf("%d", r.CustomerID),
		r.SKU,
		fmt.Sprintf("%d", r.Quantity),
		FormatAmount(r.LineTotal),
		FormatAmount(r.ProductCost),
		FormatAmount(r.LineCOGS),
		r.OrderStatus,
		FormatAmount(r.ShippingPaid),
		FormatAmount(r.TaxesPaid),
	}
}

// Product is the subset of the WooCommerce product payload needed for
// cost lookups via the _wc_cog_cost meta field.
type Product struct {
	ID       int64         `json:"id"`
	SKU      string        `json:"sku"`
	MetaData []ProductMeta `json:"meta_data"`
}

// ProductMeta is one entry in a product's meta_data array. Values are
// untyped in the WooCommerce schema.
type ProductMeta struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// CostMetaKey is the product meta key written by the WooCommerce
// Cost of Goods plugin.
const CostMetaKey = "_wc_cog_cost"

// CostFromMeta extracts the unit cost from product meta data.
// Returns false when the key is absent or the value does not parse.
func (p *Product) CostFromMeta() (decimal.Decimal, bool) {
	for _, m := range p.MetaData {
		if m.Key != CostMetaKey {
			continue
		}
		switch v := m.Value.(type) {
		case string:
			d, err := decimal.NewFromString(v)
			if err != nil {
				return decimal.Zero, false
			}
			return d, true
		case float64:
			return decimal.NewFromFloat(v), true
		default:
			return decimal.Zero, false
		}
	}
	return decimal.Zero, false
}
