package export

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"wc-export/internal/cost"
	"wc-export/internal/model"
)

type stubFetcher struct {
	orders []model.Order
	err    error
}

func (s stubFetcher) FetchAllOrders(context.Context, string, string) ([]model.Order, error) {
	return s.orders, s.err
}

type stubUploader struct {
	records [][]string
	err     error
	calls   int
}

func (s *stubUploader) Upload(_ context.Context, _ string, records [][]string) error {
	s.calls++
	s.records = records
	return s.err
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testOrders() []model.Order {
	return []model.Order{
		{
			ID:          102,
			DateCreated: "2025-01-17T10:00:00",
			Status:      "completed",
			LineItems:   []model.LineItem{{SKU: "B", Quantity: 1, Total: "8.00"}},
		},
		{
			ID:          100,
			DateCreated: "2025-01-15T10:00:00",
			Status:      "completed",
			LineItems: []model.LineItem{
				{SKU: "A", Quantity: 3, Total: "12.00"},
				{SKU: "B", Quantity: 1, Total: "8.00"},
			},
		},
	}
}

func testRunner(t *testing.T, fetcher Fetcher) *Runner {
	t.Helper()
	return &Runner{
		Fetcher:    fetcher,
		Costs:      cost.Table{"A": d("2.00"), "B": d("5.00")},
		OutputPath: filepath.Join(t.TempDir(), "orders.csv"),
	}
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	return records
}

func TestRunWritesSortedCSV(t *testing.T) {
	r := testRunner(t, stubFetcher{orders: testOrders()})

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.OrdersFetched != 2 || summary.OrdersSkipped != 0 {
		t.Errorf("fetched/skipped = %d/%d, want 2/0", summary.OrdersFetched, summary.OrdersSkipped)
	}
	if summary.RowsWritten != 3 {
		t.Errorf("RowsWritten = %d, want 3", summary.RowsWritten)
	}

	records := readRecords(t, r.OutputPath)
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4 (header + 3 rows)", len(records))
	}
	// Rows are ordered by order ID even though the API returned 102 first.
	if records[1][0] != "100" || records[2][0] != "100" || records[3][0] != "102" {
		t.Errorf("order IDs = [%s %s %s], want [100 100 102]",
			records[1][0], records[2][0], records[3][0])
	}
	// Line items within order 100 keep their original order.
	if records[1][3] != "A" || records[2][3] != "B" {
		t.Errorf("order 100 skus = [%s %s], want [A B]", records[1][3], records[2][3])
	}
}

func TestRunSkipsMalformedOrders(t *testing.T) {
	orders := testOrders()
	orders = append(orders, model.Order{
		// no date_created
		ID:        103,
		LineItems: []model.LineItem{{SKU: "A", Quantity: 1, Total: "4.00"}},
	})
	r := testRunner(t, stubFetcher{orders: orders})

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.OrdersSkipped != 1 {
		t.Errorf("OrdersSkipped = %d, want 1", summary.OrdersSkipped)
	}
	if summary.RowsWritten != 3 {
		t.Errorf("RowsWritten = %d, want 3 (malformed order excluded)", summary.RowsWritten)
	}
	if len(summary.Warnings) != 1 || !strings.Contains(summary.Warnings[0], "103") {
		t.Errorf("Warnings = %v, want one naming order 103", summary.Warnings)
	}
}

func TestRunFetchErrorIsFatal(t *testing.T) {
	wantErr := errors.New("connection refused")
	r := testRunner(t, stubFetcher{err: wantErr})

	_, err := r.Run(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Run() error = %v, want wrapped %v", err, wantErr)
	}
	if _, serr := os.Stat(r.OutputPath); !errors.Is(serr, os.ErrNotExist) {
		t.Error("CSV file created despite fetch failure")
	}
}

func TestRunEmptyStoreWritesHeaderOnly(t *testing.T) {
	r := testRunner(t, stubFetcher{})

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.RowsWritten != 0 {
		t.Errorf("RowsWritten = %d, want 0", summary.RowsWritten)
	}
	records := readRecords(t, r.OutputPath)
	if len(records) != 1 {
		t.Errorf("got %d records, want header only", len(records))
	}
}

func TestRunUploadsWhenConfigured(t *testing.T) {
	up := &stubUploader{}
	r := testRunner(t, stubFetcher{orders: testOrders()})
	r.Uploader = up
	r.Worksheet = "order_data"

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !summary.Uploaded {
		t.Error("Uploaded = false, want true")
	}
	if up.calls != 1 {
		t.Errorf("uploader called %d times, want 1", up.calls)
	}
	if len(up.records) != 4 {
		t.Errorf("uploaded %d records, want 4 (header + 3 rows)", len(up.records))
	}
}

func TestRunUploadFailureIsWarning(t *testing.T) {
	up := &stubUploader{err: errors.New("quota exceeded")}
	r := testRunner(t, stubFetcher{orders: testOrders()})
	r.Uploader = up

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v, want nil (CSV is still a valid artifact)", err)
	}
	if summary.Uploaded {
		t.Error("Uploaded = true, want false")
	}
	found := false
	for _, w := range summary.Warnings {
		if strings.Contains(w, "quota exceeded") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want one mentioning the upload error", summary.Warnings)
	}
	if _, serr := os.Stat(r.OutputPath); serr != nil {
		t.Errorf("CSV missing after upload failure: %v", serr)
	}
}
