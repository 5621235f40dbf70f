package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"wc-export/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		StoreURL:          server.URL,
		ConsumerKey:       "ck_test",
		ConsumerSecret:    "cs_test",
		RequestsPerSecond: 1000, // don't slow the tests down
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client, server
}

func TestNewRequiresConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing URL", Config{ConsumerKey: "k", ConsumerSecret: "s"}},
		{"missing key", Config{StoreURL: "https://shop.example.com", ConsumerSecret: "s"}},
		{"missing secret", Config{StoreURL: "https://shop.example.com", ConsumerKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestListOrdersSendsQueryCredentials(t *testing.T) {
	// httptest servers are plain HTTP, so credentials go in the query string.
	var gotQuery map[string][]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wc/v3/orders" {
			t.Errorf("path = %s, want /wp-json/wc/v3/orders", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode([]model.Order{})
	}))

	_, err := client.ListOrders(context.Background(), ListOrdersParams{
		After:  "2025-01-01T00:00:00",
		Status: "completed",
		Page:   2,
	})
	if err != nil {
		t.Fatalf("ListOrders() error: %v", err)
	}

	want := map[string]string{
		"consumer_key":    "ck_test",
		"consumer_secret": "cs_test",
		"after":           "2025-01-01T00:00:00",
		"status":          "completed",
		"page":            "2",
		"per_page":        "100",
	}
	for k, v := range want {
		if got := gotQuery[k]; len(got) != 1 || got[0] != v {
			t.Errorf("query[%s] = %v, want %s", k, got, v)
		}
	}
}

func TestFetchAllOrdersPaginates(t *testing.T) {
	// Three pages: 2 orders, 1 order, empty.
	pages := map[int][]model.Order{
		1: {{ID: 1, DateCreated: "2025-01-01T00:00:00"}, {ID: 2, DateCreated: "2025-01-02T00:00:00"}},
		2: {{ID: 3, DateCreated: "2025-01-03T00:00:00"}},
		3: {},
	}
	var requests int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		json.NewEncoder(w).Encode(pages[page])
	}))

	orders, err := client.FetchAllOrders(context.Background(), "2025-01-01T00:00:00", "")
	if err != nil {
		t.Fatalf("FetchAllOrders() error: %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("got %d orders, want 3", len(orders))
	}
	if requests != 3 {
		t.Errorf("made %d requests, want 3", requests)
	}
	if orders[2].ID != 3 {
		t.Errorf("orders[2].ID = %d, want 3", orders[2].ID)
	}
}

func TestProductCost(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-json/wc/v3/products/42":
			json.NewEncoder(w).Encode(model.Product{
				ID:  42,
				SKU: "A",
				MetaData: []model.ProductMeta{
					{Key: "_other", Value: "x"},
					{Key: model.CostMetaKey, Value: "2.00"},
				},
			})
		case "/wp-json/wc/v3/products/43":
			json.NewEncoder(w).Encode(model.Product{ID: 43, SKU: "B"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	cost, found, err := client.ProductCost(context.Background(), 42)
	if err != nil {
		t.Fatalf("ProductCost(42) error: %v", err)
	}
	if !found || !cost.Equal(decimal.RequireFromString("2.00")) {
		t.Errorf("ProductCost(42) = (%s, %v), want (2.00, true)", cost, found)
	}

	_, found, err = client.ProductCost(context.Background(), 43)
	if err != nil {
		t.Fatalf("ProductCost(43) error: %v", err)
	}
	if found {
		t.Error("ProductCost(43) found = true, want false for product without cost meta")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "unauthorized",
			status: 401,
			body:   `{"code":"woocommerce_rest_cannot_view","message":"Sorry","data":{"status":401}}`,
			want:   model.ErrUnauthorized,
		},
		{
			name:   "bad request",
			status: 400,
			body:   `{"code":"rest_invalid_param","message":"Invalid parameter(s): after","data":{"status":400}}`,
			want:   model.ErrInvalidRequest,
		},
		{
			name:   "not found",
			status: 404,
			body:   `{"code":"rest_no_route","message":"no route","data":{"status":404}}`,
			want:   model.ErrNotFound,
		},
		{
			name:   "rate limited",
			status: 429,
			body:   ``,
			want:   model.ErrRateLimited,
		},
		{
			name:   "server error",
			status: 500,
			body:   `{"code":"internal","message":"boom"}`,
			want:   model.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))

			_, err := client.ListOrders(context.Background(), ListOrdersParams{})
			if err == nil {
				t.Fatal("ListOrders() expected error, got nil")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want errors.Is(%v)", err, tt.want)
			}
		})
	}
}

func TestPing(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "1" {
			t.Errorf("per_page = %s, want 1", got)
		}
		json.NewEncoder(w).Encode([]model.Order{})
	}))

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Order{})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.ListOrders(ctx, ListOrdersParams{}); err == nil {
		t.Error("ListOrders() with canceled context expected error")
	}
}
