package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Catalog sources.
const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Config holds the complete funnel configuration, loadable from environment
// variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Storage     StorageConfig
	Catalog     CatalogConfig
	Checkout    CheckoutConfig
	Coupons     CouponsConfig
	Search      SearchConfig
}

// StorageConfig selects where cart, basket and catalog snapshots live.
type StorageConfig struct {
	Backend string `default:"file" usage:"Snapshot storage backend: file, memory or postgres"`
	Dir     string `default:".kart" usage:"Directory for the file backend"`
}

// CatalogConfig controls where the product and package catalogs come from.
type CatalogConfig struct {
	Source       string        `default:"http" usage:"Catalog source: http or postgres"`
	BaseURL      string        `default:"https://api.tamkeen.center" usage:"Storefront API base URL" flag:"catalog-base-url"`
	MediaBaseURL string        `default:"" usage:"Base URL for package images (defaults to the API base URL)" flag:"media-base-url"`
	Timeout      time.Duration `default:"10s" usage:"Per-fetch timeout"`
}

// CheckoutConfig controls order placement.
type CheckoutConfig struct {
	Unified  bool   `default:"false" usage:"Check out cart and basket together as one order"`
	Endpoint string `default:"" usage:"Checkout API base URL; empty places orders locally" flag:"checkout-endpoint"`
}

// CouponsConfig controls discovery of promo codes in gzip code bases.
type CouponsConfig struct {
	Bases         []string `usage:"Gzip-compressed promo code lists"`
	MinBases      int      `default:"2" usage:"Number of lists a code must appear in"`
	BloomCapacity uint     `default:"1000000" usage:"Expected codes per list"`
}

// SearchConfig controls catalog search.
type SearchConfig struct {
	MinTermLength int `default:"2" usage:"Shortest search term that yields results"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// command-line flags in args, and applies platform-specific defaults.
func LoadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
		Args: args,
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			return errors.New("storage dir is required for the file backend")
		}
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres backend: set KART_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Catalog.Source {
	case SourceHTTP:
		if c.Catalog.BaseURL == "" {
			return errors.New("catalog base URL is required for the http source")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres catalog: set KART_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown catalog source %q", c.Catalog.Source)
	}

	if c.Search.MinTermLength < 1 {
		return errors.New("search min term length must be at least 1")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL to the KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
}

func (c *Config) needsPostgres() bool {
	return c.Storage.Backend == BackendPostgres || c.Catalog.Source == SourcePostgres
}
