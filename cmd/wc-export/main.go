// wc-export - Fetches WooCommerce orders and exports them as per-line-item
// COGS rows to CSV, with optional Google Sheets upload.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"wc-export/internal/config"
	"wc-export/internal/cost"
	"wc-export/internal/export"
	"wc-export/internal/mcptool"
	"wc-export/internal/middleware"
	"wc-export/internal/sheets"
	"wc-export/internal/woocommerce"
)

const defaultOutput = "orders.csv"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Subcommand first, flags after: wc-export [export|check|serve] [flags]
	command := "export"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("wc-export", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to JSON credentials/config file")
	authFile := fs.String("auth-file", "", "Google service account JSON file for Sheets upload")
	out := fs.String("out", "", "output CSV path")
	after := fs.String("after", "", "only orders created after this ISO8601 date")
	status := fs.String("status", "", "order status filter, e.g. completed")
	sheetID := fs.String("sheet-id", "", "Google Sheets spreadsheet ID to upload to")
	worksheet := fs.String("worksheet", "", "worksheet name for the upload")
	costFile := fs.String("costs", "", "CSV file with sku,cost rows")
	defaultCost := fs.String("default-cost", "", "unit cost for items with no cost entry")
	port := fs.String("port", "8080", "listen port for serve mode")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := initLogger(*verbose)
	ctx := context.Background()

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// First run with nothing configured: ask for credentials and persist
	// them so the next run is non-interactive.
	if !cfg.HasCredentials() {
		credsPath := *configPath
		if credsPath == "" {
			credsPath = config.DefaultCredentialsFile
		}
		logger.Info("no credentials found, prompting", slog.String("credentials_file", credsPath))
		if err := cfg.Prompt(os.Stdin, os.Stderr, credsPath); err != nil {
			return fmt.Errorf("collecting credentials: %w", err)
		}
	}

	// Flags override file and env settings.
	applyFlag(&cfg.Store.ServiceAccount, *authFile)
	applyFlag(&cfg.Store.Output, *out)
	applyFlag(&cfg.Store.StartDate, *after)
	applyFlag(&cfg.Store.Status, *status)
	applyFlag(&cfg.Store.SheetID, *sheetID)
	applyFlag(&cfg.Store.Worksheet, *worksheet)
	applyFlag(&cfg.Store.CostFile, *costFile)
	applyFlag(&cfg.Store.DefaultCost, *defaultCost)

	logger.Info("configuration loaded",
		slog.String("store_url", cfg.Store.StoreURL),
		slog.String("environment", cfg.Environment),
	)

	client, err := woocommerce.New(woocommerce.Config{
		StoreURL:          cfg.Store.StoreURL,
		ConsumerKey:       cfg.Store.ConsumerKey,
		ConsumerSecret:    cfg.Store.ConsumerSecret,
		RequestsPerSecond: cfg.Store.RequestsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("creating store client: %w", err)
	}

	if command == "check" {
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("store check failed: %w", err)
		}
		logger.Info("store reachable", slog.String("store_url", cfg.Store.StoreURL))
		return nil
	}

	runner, err := buildRunner(ctx, cfg, client, logger)
	if err != nil {
		return err
	}

	switch command {
	case "export":
		summary, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("export complete",
			slog.Int("orders_fetched", summary.OrdersFetched),
			slog.Int("orders_skipped", summary.OrdersSkipped),
			slog.Int("rows_written", summary.RowsWritten),
			slog.String("csv", summary.CSVPath),
			slog.Bool("uploaded", summary.Uploaded),
			slog.Int("warnings", len(summary.Warnings)),
		)
		return nil
	case "serve":
		return serve(runner, logger, *port)
	default:
		return fmt.Errorf("unknown command %q (want export, check, or serve)", command)
	}
}

// buildRunner assembles the export pipeline from configuration.
func buildRunner(ctx context.Context, cfg *config.Config, client *woocommerce.Client, logger *slog.Logger) (*export.Runner, error) {
	// Static cost table takes priority, product metadata fills the gaps.
	var sources cost.Chain
	if cfg.Store.CostFile != "" {
		table, err := cost.LoadTable(cfg.Store.CostFile)
		if err != nil {
			return nil, err
		}
		logger.Info("cost table loaded",
			slog.String("path", cfg.Store.CostFile),
			slog.Int("entries", len(table)),
		)
		sources = append(sources, table)
	}
	sources = append(sources, cost.NewProductMeta(client))

	fallback := decimal.Zero
	if cfg.Store.DefaultCost != "" {
		var err error
		fallback, err = decimal.NewFromString(cfg.Store.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("invalid default cost %q: %w", cfg.Store.DefaultCost, err)
		}
	}

	output := cfg.Store.Output
	if output == "" {
		output = defaultOutput
	}

	runner := &export.Runner{
		Fetcher:     client,
		Costs:       sources,
		DefaultCost: fallback,
		After:       cfg.Store.StartDate,
		Status:      cfg.Store.Status,
		OutputPath:  output,
		Worksheet:   cfg.Store.Worksheet,
		Logger:      logger,
	}

	if cfg.Store.SheetID != "" {
		saFile := cfg.Store.ServiceAccount
		if saFile == "" {
			saFile = "service_account.json"
		}
		uploader, err := sheets.New(ctx, saFile, cfg.Store.SheetID)
		if err != nil {
			// The CSV is the primary artifact, so a broken Sheets setup
			// downgrades to CSV-only instead of failing the run.
			logger.Warn("sheets upload disabled", slog.Any("error", err))
		} else {
			runner.Uploader = uploader
			logger.Info("sheets upload enabled",
				slog.String("spreadsheet", uploader.SpreadsheetID()),
				slog.String("worksheet", cfg.Store.Worksheet),
			)
		}
	}

	return runner, nil
}

// serve exposes the exporter as MCP tools over HTTP until interrupted.
func serve(runner *export.Runner, logger *slog.Logger, port string) error {
	tools := mcptool.New(runner, logger)

	mux := http.NewServeMux()
	mux.Handle("/mcp", tools.NewHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Recovery outermost so panics in logging middleware are caught too.
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
	)(mux)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // exports can take a while
		IdleTimeout:  120 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// applyFlag overrides dst when the flag was set.
func applyFlag(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// initLogger creates a structured logger.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose || os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
