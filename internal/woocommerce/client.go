// Package woocommerce implements a read-only client for the WooCommerce
// REST API (wc/v3): paginated order listing and product cost lookups.
package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"wc-export/internal/model"
	"wc-export/internal/transport"
)

// restAPIPath is the base path for WooCommerce REST v3 endpoints.
// Must include /wp-json prefix for proper routing.
const restAPIPath = "/wp-json/wc/v3"

// userAgent identifies this client to upstream servers.
// Required: WooCommerce CDN/WAF rate-limits requests without User-Agent.
const userAgent = "wc-export/1.0"

// defaultPerPage is the page size used for order listing. 100 is the
// maximum WooCommerce accepts.
const defaultPerPage = 100

// Config holds WooCommerce client configuration.
type Config struct {
	StoreURL       string
	ConsumerKey    string
	ConsumerSecret string

	// RequestsPerSecond caps the outbound request rate. Zero means a
	// conservative default of 4 req/s; shared hosts throttle well below
	// the API's nominal limits.
	RequestsPerSecond float64
}

// Client talks to a single WooCommerce store over REST v3.
// Authentication uses basic auth over HTTPS; for plain-HTTP stores the
// consumer key/secret travel as query parameters, since WooCommerce
// rejects basic auth without TLS.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	storeURL   string
	key        string
	secret     string
	useQuery   bool // query-param credentials for non-HTTPS stores
}

// New creates a WooCommerce client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, fmt.Errorf("API credentials are required")
	}

	u, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}

	// Chrome TLS fingerprint transport avoids JA3-based rate limiting on
	// HTTPS stores. See internal/transport for rationale.
	rt := transport.NewChromeTransport(30 * time.Second)
	if u.Scheme != "https" {
		rt = transport.NewPlainTransport()
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: rt,
		},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		storeURL: strings.TrimSuffix(cfg.StoreURL, "/"),
		key:      cfg.ConsumerKey,
		secret:   cfg.ConsumerSecret,
		useQuery: u.Scheme != "https",
	}, nil
}

// ListOrdersParams filters a single page of the order listing.
type ListOrdersParams struct {
	After   string // ISO8601 lower bound on date_created
	Status  string // WooCommerce status slug, empty = any
	Page    int    // 1-based
	PerPage int    // 0 = defaultPerPage
}

// ListOrders fetches one page of orders.
// An empty result means pagination is exhausted.
func (c *Client) ListOrders(ctx context.Context, params ListOrdersParams) ([]model.Order, error) {
	q := url.Values{}
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	q.Set("per_page", strconv.Itoa(perPage))
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.After != "" {
		q.Set("after", params.After)
	}
	if params.Status != "" {
		q.Set("status", params.Status)
	}

	var orders []model.Order
	if err := c.get(ctx, "/orders", q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// FetchAllOrders pages through the full order listing, oldest filter bound
// first, until the store returns an empty batch. Pages are fetched
// sequentially; the rate limiter spaces the calls.
func (c *Client) FetchAllOrders(ctx context.Context, after, status string) ([]model.Order, error) {
	var all []model.Order
	for page := 1; ; page++ {
		batch, err := c.ListOrders(ctx, ListOrdersParams{
			After:  after,
			Status: status,
			Page:   page,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching orders page %d: %w", page, err)
		}
		if len(batch) == 0 {
			return all, nil
		}
		all = append(all, batch...)
	}
}

// Product fetches a single product by ID.
func (c *Client) Product(ctx context.Context, productID int64) (*model.Product, error) {
	var p model.Product
	if err := c.get(ctx, fmt.Sprintf("/products/%d", productID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProductCost reads the unit cost from the product's _wc_cog_cost meta.
// Returns found=false when the product has no usable cost entry.
func (c *Client) ProductCost(ctx context.Context, productID int64) (decimal.Decimal, bool, error) {
	p, err := c.Product(ctx, productID)
	if err != nil {
		return decimal.Zero, false, err
	}
	cost, found := p.CostFromMeta()
	return cost, found, nil
}

// Ping verifies connectivity and credentials with a minimal order query.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListOrders(ctx, ListOrdersParams{PerPage: 1, Page: 1})
	return err
}

// get executes an authenticated GET against the REST v3 API and decodes
// the JSON response into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if q == nil {
		q = url.Values{}
	}
	if c.useQuery {
		q.Set("consumer_key", c.key)
		q.Set("consumer_secret", c.secret)
	}

	fullURL := c.storeURL + restAPIPath + path
	if len(q) > 0 {
		fullURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if !c.useQuery {
		req.SetBasicAuth(c.key, c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("WooCommerce", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// parseErrorResponse converts a WooCommerce error body to an APIError.
func parseErrorResponse(statusCode int, body []byte) error {
	var wcErr wooErrorResponse
	json.Unmarshal(body, &wcErr) // Best effort parse

	switch statusCode {
	case 400:
		msg := wcErr.Message
		if msg == "" {
			msg = "rejected by WooCommerce"
		}
		return model.NewValidationError("request", msg)
	case 404:
		return model.NewNotFoundError("resource")
	case 401, 403:
		msg := wcErr.Message
		if msg == "" {
			msg = "WooCommerce authentication failed"
		}
		return model.NewUnauthorizedError(msg)
	case 429:
		return model.NewRateLimitError("WooCommerce")
	default:
		return model.NewUpstreamError("WooCommerce",
			fmt.Errorf("status %d: %s - %s", statusCode, wcErr.Code, wcErr.Message))
	}
}
