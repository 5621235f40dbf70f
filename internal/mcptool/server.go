// Package mcptool exposes the exporter as MCP tools using the official MCP
// Go SDK, so agents can trigger and preview exports over HTTP.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"wc-export/internal/export"
	"wc-export/internal/flatten"
	"wc-export/internal/model"
)

// Server wires a configured export pipeline to MCP tool handlers.
type Server struct {
	runner *export.Runner
	logger *slog.Logger
}

// New creates an MCP tool server around the given runner.
func New(runner *export.Runner, logger *slog.Logger) *Server {
	return &Server{runner: runner, logger: logger}
}

// ExportOrdersInput is the input schema for the export_orders tool.
type ExportOrdersInput struct {
	After  string `json:"after,omitempty" jsonschema:"ISO8601 date, only orders created after this"`
	Status string `json:"status,omitempty" jsonschema:"order status filter, e.g. completed"`
	Upload bool   `json:"upload,omitempty" jsonschema:"push the result to Google Sheets after writing the CSV"`
}

// PreviewOrdersInput is the input schema for the preview_orders tool.
type PreviewOrdersInput struct {
	After  string `json:"after,omitempty" jsonschema:"ISO8601 date, only orders created after this"`
	Status string `json:"status,omitempty" jsonschema:"order status filter, e.g. completed"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum rows to return, default 10"`
}

// PreviewRow is one flattened line item with money fields rendered as
// fixed-point strings.
type PreviewRow struct {
	OrderID     int64  `json:"order_id"`
	OrderDate   string `json:"order_date"`
	SKU         string `json:"line_item_sku"`
	Quantity    int    `json:"line_item_quantity"`
	LineTotal   string `json:"line_item_total"`
	ProductCost string `json:"product_cost"`
	LineCOGS    string `json:"line_COGS"`
	OrderStatus string `json:"order_status"`
}

// PreviewOutput is the output schema for the preview_orders tool.
type PreviewOutput struct {
	Rows      int          `json:"rows"` // total flattened rows, before the limit
	Truncated bool         `json:"truncated"`
	Preview   []PreviewRow `json:"preview"`
}

// NewMCPServer creates an MCP server with the export tools registered.
func (s *Server) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "wc-export",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "WooCommerce order export. Use preview_orders to inspect " +
				"flattened rows and export_orders to write the CSV artifact.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_orders",
		Description: "Fetch orders, flatten them to per-line-item rows with COGS, and write orders.csv. Optionally upload to Google Sheets.",
	}, s.exportOrders)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview_orders",
		Description: "Fetch and flatten orders without writing anything, returning the first rows for inspection.",
	}, s.previewOrders)

	return server
}

// NewHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (s *Server) NewHandler() http.Handler {
	server := s.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

func (s *Server) exportOrders(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ExportOrdersInput,
) (*mcp.CallToolResult, *export.Summary, error) {
	// Copy the runner so per-call filters don't leak between requests.
	run := *s.runner
	if input.After != "" {
		run.After = input.After
	}
	if input.Status != "" {
		run.Status = input.Status
	}
	if !input.Upload {
		run.Uploader = nil
	}

	summary, err := run.Run(ctx)
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, summary, nil
}

func (s *Server) previewOrders(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input PreviewOrdersInput,
) (*mcp.CallToolResult, *PreviewOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	after := s.runner.After
	if input.After != "" {
		after = input.After
	}
	status := s.runner.Status
	if input.Status != "" {
		status = input.Status
	}

	orders, err := s.runner.Fetcher.FetchAllOrders(ctx, after, status)
	if err != nil {
		return nil, nil, s.toolError(err)
	}

	out := &PreviewOutput{Preview: []PreviewRow{}}
	for i := range orders {
		order := &orders[i]
		if order.Validate() != nil {
			continue
		}
		rows, _, ferr := flatten.Flatten(ctx, order, s.runner.Costs, s.runner.DefaultCost)
		if ferr != nil {
			return nil, nil, s.toolError(ferr)
		}
		out.Rows += len(rows)
		for _, row := range rows {
			if len(out.Preview) >= limit {
				continue
			}
			out.Preview = append(out.Preview, PreviewRow{
				OrderID:     row.OrderID,
				OrderDate:   row.OrderDate,
				SKU:         row.SKU,
				Quantity:    row.Quantity,
				LineTotal:   model.FormatAmount(row.LineTotal),
				ProductCost: model.FormatAmount(row.ProductCost),
				LineCOGS:    model.FormatAmount(row.LineCOGS),
				OrderStatus: row.OrderStatus,
			})
		}
	}
	out.Truncated = out.Rows > len(out.Preview)

	return nil, out, nil
}

// toolError converts pipeline errors to MCP-friendly errors without leaking
// internals.
func (s *Server) toolError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	s.logger.Error("mcp tool error", "error", err.Error())
	return fmt.Errorf("export failed: %v", err)
}
