// Package config handles loading and validation of exporter configuration.
// Supports both development (env vars / credentials file) and production
// (Secret Manager) modes.
package config

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// DefaultCredentialsFile is where first-run credentials are persisted.
const DefaultCredentialsFile = "wc_credentials.json"

// Config holds all exporter configuration.
// Environment determines whether credentials load from env vars or a local
// file (development) or Secret Manager (production).
type Config struct {
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	StoreID    string

	// Store credentials and export settings
	Store StoreConfig
}

// StoreConfig contains store credentials and per-run export settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from a credentials file or individual env vars.
type StoreConfig struct {
	StoreURL       string `json:"base_url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`

	// Export settings, all optional
	StartDate         string  `json:"start_date,omitempty"` // ISO8601 lower bound on order date
	Status            string  `json:"status,omitempty"`     // order status filter
	Output            string  `json:"output,omitempty"`     // CSV path, default orders.csv
	CostFile          string  `json:"cost_file,omitempty"`  // static SKU cost table
	DefaultCost       string  `json:"default_cost,omitempty"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`

	// Google Sheets upload (presence of sheet_id enables it)
	SheetID        string `json:"sheet_id,omitempty"`
	Worksheet      string `json:"worksheet,omitempty"`
	ServiceAccount string `json:"service_account,omitempty"` // path to SA JSON
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: explicit configPath → ENV vars / Secret Manager → local
// credentials file → interactive prompt.
func Load(ctx context.Context, configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return loadFromFile(configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// First run against a fresh path: return an unpopulated config so
		// the caller can prompt and persist credentials to that path.
		return &Config{
			Environment: envOrDefault("ENVIRONMENT", "development"),
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		}, nil
	}

	cfg := &Config{
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		StoreID:     os.Getenv("STORE_ID"),
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StoreID == "" {
			return nil, fmt.Errorf("STORE_ID required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading store config: %w", err)
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg.loadFromEnv()
	if cfg.Store.ConsumerKey != "" {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// No env credentials: fall back to the local credentials file.
	if _, err := os.Stat(DefaultCredentialsFile); err == nil {
		return loadFromFile(DefaultCredentialsFile)
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON credentials file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
	}
	if err := json.Unmarshal(data, &cfg.Store); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches store config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{store_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StoreID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadFromEnv reads store config from individual environment variables.
func (c *Config) loadFromEnv() {
	c.Store = StoreConfig{
		StoreURL:       os.Getenv("WC_STORE_URL"),
		ConsumerKey:    os.Getenv("WC_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("WC_CONSUMER_SECRET"),
		StartDate:      os.Getenv("WC_START_DATE"),
		Status:         os.Getenv("WC_STATUS"),
		Output:         os.Getenv("WC_OUTPUT"),
		CostFile:       os.Getenv("WC_COST_FILE"),
		DefaultCost:    os.Getenv("WC_DEFAULT_COST"),
		SheetID:        os.Getenv("WC_SHEET_ID"),
		Worksheet:      os.Getenv("WC_WORKSHEET"),
		ServiceAccount: os.Getenv("WC_SERVICE_ACCOUNT"),
	}
}

// HasCredentials reports whether store URL and both API keys are present.
func (c *Config) HasCredentials() bool {
	return c.Store.StoreURL != "" && c.Store.ConsumerKey != "" && c.Store.ConsumerSecret != ""
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Store.StoreURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Store.ConsumerKey == "" {
		return fmt.Errorf("consumer_key is required")
	}
	if c.Store.ConsumerSecret == "" {
		return fmt.Errorf("consumer_secret is required")
	}
	u, err := url.Parse(c.Store.StoreURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", c.Store.StoreURL)
	}
	return nil
}

// Prompt reads store URL and API keys interactively and persists them to
// path with owner-only permissions, so the next run skips the prompt.
// Used on first run when no other configuration source is available.
func (c *Config) Prompt(r io.Reader, w io.Writer, path string) error {
	scanner := bufio.NewScanner(r)
	ask := func(label string) (string, error) {
		fmt.Fprintf(w, "%s: ", label)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	var err error
	if c.Store.StoreURL, err = ask("Store URL (https://example.com)"); err != nil {
		return fmt.Errorf("reading store URL: %w", err)
	}
	if c.Store.ConsumerKey, err = ask("Consumer key"); err != nil {
		return fmt.Errorf("reading consumer key: %w", err)
	}
	if c.Store.ConsumerSecret, err = ask("Consumer secret"); err != nil {
		return fmt.Errorf("reading consumer secret: %w", err)
	}

	if err := c.validate(); err != nil {
		return err
	}
	return c.Save(path)
}

// Save writes the store config to path as JSON, readable only by the owner
// since it contains API credentials.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c.Store, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
