package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. SERENDIPITY_FINANCE_DOCUMENT_PATH.
const EnvPrefix = "SERENDIPITY"

// Config holds all application configuration
type Config struct {
	Finance    FinanceConfig    `json:"finance" envconfig:"FINANCE"`
	MarketData MarketDataConfig `json:"market_data" envconfig:"MARKET_DATA"`
	Google     GoogleConfig     `json:"google" envconfig:"GOOGLE"`
	Logging    LoggingConfig    `json:"logging" envconfig:"LOGGING"`
}

type FinanceConfig struct {
	// DocumentPath is the archive root; statements land under <DocumentPath>/finance/statements.
	DocumentPath string        `json:"document_path" envconfig:"DOCUMENT_PATH" validate:"required"`
	Archive      ArchiveConfig `json:"archive" envconfig:"ARCHIVE"`
	// CatalogPath is where the bleve catalog lives. Empty disables the catalog.
	CatalogPath string `json:"catalog_path" envconfig:"CATALOG_PATH"`
}

type ArchiveConfig struct {
	Backend   string `json:"backend" envconfig:"BACKEND" validate:"omitempty,oneof=local gcs"`
	GCSBucket string `json:"gcs_bucket" envconfig:"GCS_BUCKET" validate:"required_if=Backend gcs"`
	GCSPrefix string `json:"gcs_prefix" envconfig:"GCS_PREFIX"`
}

type MarketDataConfig struct {
	QuoteURL          string  `json:"quote_url" envconfig:"QUOTE_URL" validate:"omitempty,url"`
	RequestsPerSecond float64 `json:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gte=0"`
	Concurrency       int     `json:"concurrency" envconfig:"CONCURRENCY" validate:"gte=0"`
	TimeoutSeconds    int     `json:"timeout_seconds" envconfig:"TIMEOUT_SECONDS" validate:"gte=0"`
	Schedule          string  `json:"schedule" envconfig:"SCHEDULE"`
}

type GoogleConfig struct {
	CredentialsFile string `json:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

type LoggingConfig struct {
	Level string `json:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultPath returns ~/.serendipity/config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".serendipity", "config.json")
	}
	return filepath.Join(home, ".serendipity", "config.json")
}

// Load reads the JSON configuration at path, applies environment overrides and validates the result.
// A missing file is not an error as long as the environment supplies the required values.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	cfg.applyDefaults()
	cfg.Finance.DocumentPath = expandHome(cfg.Finance.DocumentPath)
	cfg.Finance.CatalogPath = expandHome(cfg.Finance.CatalogPath)
	cfg.Google.CredentialsFile = expandHome(cfg.Google.CredentialsFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Finance.Archive.Backend == "" {
		c.Finance.Archive.Backend = "local"
	}
	if c.MarketData.QuoteURL == "" {
		c.MarketData.QuoteURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	if c.MarketData.RequestsPerSecond == 0 {
		c.MarketData.RequestsPerSecond = 2
	}
	if c.MarketData.Concurrency == 0 {
		c.MarketData.Concurrency = 4
	}
	if c.MarketData.TimeoutSeconds == 0 {
		c.MarketData.TimeoutSeconds = 15
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Timeout is the per-request HTTP timeout for quote lookups.
func (m *MarketDataConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
