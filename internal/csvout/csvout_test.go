package csvout

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"wc-export/internal/model"
)

func sampleRows() []model.OutputRow {
	return []model.OutputRow{
		{
			OrderID:      100,
			OrderDate:    "2025-01-15T10:00:00",
			CustomerID:   7,
			SKU:          "A",
			Quantity:     3,
			LineTotal:    decimal.RequireFromString("12.00"),
			ProductCost:  decimal.RequireFromString("2.00"),
			LineCOGS:     decimal.RequireFromString("6.00"),
			OrderStatus:  "completed",
			ShippingPaid: decimal.RequireFromString("5.00"),
			TaxesPaid:    decimal.RequireFromString("1.50"),
		},
		{
			OrderID:     100,
			OrderDate:   "2025-01-15T10:00:00",
			CustomerID:  7,
			SKU:         "B",
			Quantity:    1,
			LineTotal:   decimal.RequireFromString("8.00"),
			ProductCost: decimal.RequireFromString("5.00"),
			LineCOGS:    decimal.RequireFromString("5.00"),
			OrderStatus: "completed",
		},
	}
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	if err := Write(path, sampleRows()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 (header + 2 rows)", len(records))
	}
	if !reflect.DeepEqual(records[0], Header) {
		t.Errorf("header = %v, want %v", records[0], Header)
	}
	want := []string{"100", "2025-01-15T10:00:00", "7", "A", "3", "12.00", "2.00", "6.00", "completed", "5.00", "1.50"}
	if !reflect.DeepEqual(records[1], want) {
		t.Errorf("row 1 = %v, want %v", records[1], want)
	}
}

func TestWriteNoRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	if err := Write(path, nil); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	want := "order_id,order_date,customer_id,line_item_sku,line_item_quantity,line_item_total,product_cost,line_COGS,order_status,shipping_paid,taxes_paid\n"
	if string(data) != want {
		t.Errorf("header-only file = %q, want %q", data, want)
	}
}

func TestWriteIdempotent(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.csv")
	p2 := filepath.Join(dir, "b.csv")

	if err := Write(p1, sampleRows()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := Write(p2, sampleRows()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	a, _ := os.ReadFile(p1)
	b, _ := os.ReadFile(p2)
	if string(a) != string(b) {
		t.Error("same rows produced different CSV bytes")
	}
}

func TestRecords(t *testing.T) {
	records := Records(sampleRows())
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if !reflect.DeepEqual(records[0], Header) {
		t.Errorf("records[0] = %v, want header", records[0])
	}
	if records[2][3] != "B" {
		t.Errorf("records[2] sku = %s, want B", records[2][3])
	}
}
