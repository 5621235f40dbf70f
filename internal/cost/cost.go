// Package cost resolves per-SKU unit costs for COGS computation.
//
// The cost lookup is an injected dependency so the flattener can run against
// a static table in tests, a CSV feed, or live product metadata from the
// store, without caring which.
package cost

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"wc-export/internal/model"
)

// Source resolves the unit cost for a line item.
// found=false means the source has no cost for this item; the caller decides
// the default.
type Source interface {
	Cost(ctx context.Context, item model.LineItem) (cost decimal.Decimal, found bool, err error)
}

// Table is a static SKU→cost mapping.
type Table map[string]decimal.Decimal

// Cost implements Source.
func (t Table) Cost(_ context.Context, item model.LineItem) (decimal.Decimal, bool, error) {
	c, ok := t[item.SKU]
	return c, ok, nil
}

// LoadTable reads a two-column cost file: sku,cost per line. A header row
// is detected by an unparsable cost column and skipped. Blank SKUs are
// rejected; duplicate SKUs keep the last value.
func LoadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cost file: %w", err)
	}
	defer f.Close()
	return ParseTable(f)
}

// ParseTable parses cost table CSV from a reader.
func ParseTable(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	table := make(Table)
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading cost table: %w", err)
		}
		line++

		sku := strings.TrimSpace(record[0])
		c, perr := decimal.NewFromString(strings.TrimSpace(record[1]))
		if perr != nil {
			if line == 1 {
				continue // header row
			}
			return nil, fmt.Errorf("cost table line %d: bad cost %q", line, record[1])
		}
		if sku == "" {
			return nil, fmt.Errorf("cost table line %d: empty sku", line)
		}
		table[sku] = c
	}
	return table, nil
}

// ProductFetcher is the slice of the commerce client the meta source needs.
type ProductFetcher interface {
	ProductCost(ctx context.Context, productID int64) (decimal.Decimal, bool, error)
}

// ProductMeta resolves costs from the store's product metadata
// (_wc_cog_cost), one API call per distinct product ID. Results, including
// negative ones, are cached for the lifetime of the source so an order list
// referencing the same product many times costs one lookup.
type ProductMeta struct {
	fetcher ProductFetcher

	mu    sync.Mutex
	cache map[int64]cached
}

type cached struct {
	cost  decimal.Decimal
	found bool
}

// NewProductMeta creates an API-backed cost source.
func NewProductMeta(fetcher ProductFetcher) *ProductMeta {
	return &ProductMeta{
		fetcher: fetcher,
		cache:   make(map[int64]cached),
	}
}

// Cost implements Source. Variations fall back to the parent product's cost
// when the line item carries no variation-specific product ID.
func (p *ProductMeta) Cost(ctx context.Context, item model.LineItem) (decimal.Decimal, bool, error) {
	productID := item.ProductID
	if item.VariationID != 0 {
		productID = item.VariationID
	}
	if productID == 0 {
		return decimal.Zero, false, nil
	}

	p.mu.Lock()
	if c, ok := p.cache[productID]; ok {
		p.mu.Unlock()
		return c.cost, c.found, nil
	}
	p.mu.Unlock()

	c, found, err := p.fetcher.ProductCost(ctx, productID)
	if err != nil {
		return decimal.Zero, false, err
	}

	p.mu.Lock()
	p.cache[productID] = cached{cost: c, found: found}
	p.mu.Unlock()

	return c, found, nil
}

// Chain queries sources in order and returns the first hit.
type Chain []Source

// Cost implements Source.
func (c Chain) Cost(ctx context.Context, item model.LineItem) (decimal.Decimal, bool, error) {
	for _, s := range c {
		cost, found, err := s.Cost(ctx, item)
		if err != nil {
			return decimal.Zero, false, err
		}
		if found {
			return cost, true, nil
		}
	}
	return decimal.Zero, false, nil
}
