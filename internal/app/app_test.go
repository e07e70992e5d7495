package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/kart-funnel/internal/notify"
	"github.com/xenking/kart-funnel/internal/session"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, ".kart", cfg.Storage.Dir)
	assert.Equal(t, SourceHTTP, cfg.Catalog.Source)
	assert.Equal(t, 10*time.Second, cfg.Catalog.Timeout)
	assert.False(t, cfg.Checkout.Unified)
	assert.Empty(t, cfg.Checkout.Endpoint)
	assert.Equal(t, 2, cfg.Coupons.MinBases)
	assert.Equal(t, 2, cfg.Search.MinTermLength)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("KART_STORAGE_BACKEND", "memory")
	t.Setenv("KART_CHECKOUT_UNIFIED", "true")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.True(t, cfg.Checkout.Unified)
}

func TestLoadConfig_DatabaseURLFallback(t *testing.T) {
	t.Setenv("KART_STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://kart@localhost/kart")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://kart@localhost/kart", cfg.DatabaseURL)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage: StorageConfig{Backend: BackendFile, Dir: ".kart"},
			Catalog: CatalogConfig{Source: SourceHTTP, BaseURL: "http://localhost"},
			Search:  SearchConfig{MinTermLength: 2},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "memory backend", mutate: func(c *Config) { c.Storage.Backend = BackendMemory }},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "redis" },
			wantErr: `unknown storage backend "redis"`,
		},
		{
			name:    "file backend without dir",
			mutate:  func(c *Config) { c.Storage.Dir = "" },
			wantErr: "storage dir is required",
		},
		{
			name:    "postgres backend without url",
			mutate:  func(c *Config) { c.Storage.Backend = BackendPostgres },
			wantErr: "database URL is required",
		},
		{
			name: "postgres catalog with url",
			mutate: func(c *Config) {
				c.Catalog.Source = SourcePostgres
				c.DatabaseURL = "postgres://localhost/kart"
			},
		},
		{
			name:    "postgres catalog without url",
			mutate:  func(c *Config) { c.Catalog.Source = SourcePostgres },
			wantErr: "database URL is required",
		},
		{
			name:    "unknown catalog source",
			mutate:  func(c *Config) { c.Catalog.Source = "ftp" },
			wantErr: `unknown catalog source "ftp"`,
		},
		{
			name:    "http catalog without base url",
			mutate:  func(c *Config) { c.Catalog.BaseURL = "" },
			wantErr: "catalog base URL is required",
		},
		{
			name:    "zero min term length",
			mutate:  func(c *Config) { c.Search.MinTermLength = 0 },
			wantErr: "min term length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// --- Helpers ---

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/product-all":
			_, _ = io.WriteString(w, `[
				{"id": 1, "name": "Shirt", "description": "Cotton", "price": "30.00"},
				{"id": 2, "name": "Mug", "price": "4.50"}
			]`)
		case "/api/packages":
			_, _ = io.WriteString(w, `{"data": [{"id": 7, "name": "Starter", "price": "99.00"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeBase(t *testing.T, dir, name string, codes ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	gz := pgzip.NewWriter(f)
	for _, code := range codes {
		_, err = io.WriteString(gz, code+"\n")
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	return path
}

func testConfig(srv *httptest.Server) *Config {
	return &Config{
		Storage: StorageConfig{Backend: BackendMemory},
		Catalog: CatalogConfig{Source: SourceHTTP, BaseURL: srv.URL, Timeout: time.Second},
		Coupons: CouponsConfig{MinBases: 2, BloomCapacity: 1000},
		Search:  SearchConfig{MinTermLength: 2},
	}
}

func testContext(t *testing.T) context.Context {
	return zctx.Base(context.Background(), zaptest.NewLogger(t))
}

func TestNew_Checkout(t *testing.T) {
	ctx := testContext(t)
	srv := catalogServer(t)

	dir := t.TempDir()
	cfg := testConfig(srv)
	cfg.Coupons.Bases = []string{
		writeBase(t, dir, "couponbase1.gz", "HAPPYHRS", "ONLYHERE1"),
		writeBase(t, dir, "couponbase2.gz", "HAPPYHRS", "SUPER100"),
	}

	rec := &notify.Recorder{}
	a, err := New(ctx, cfg, Deps{Notifier: rec})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	s := a.Session

	require.Len(t, s.Products(ctx), 2)
	require.Len(t, s.Packages(ctx), 1)
	assert.Equal(t, []string{"Mug"}, names(s.Search("mu")))

	_, err = s.AddProductByID(ctx, "1")
	require.NoError(t, err)
	_, err = s.SetProductQuantity(ctx, "1", 2)
	require.NoError(t, err)

	// Ingested codes sit alongside the built-in ones.
	totals, err := s.ApplyCoupon(ctx, "happyhrs", session.ScopeCart)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("49.20").Equal(totals.Total), "total: %s", totals.Total)

	_, err = s.ApplyCoupon(ctx, "ONLYHERE1", session.ScopeCart)
	require.Error(t, err)

	o, err := s.Checkout(ctx, session.ScopeCart)
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "HAPPYHRS", o.CouponCode)
	assert.True(t, decimal.RequireFromString("10.80").Equal(o.Discount), "discount: %s", o.Discount)
	assert.Empty(t, s.Cart())

	_, ok := s.AppliedCoupon()
	assert.False(t, ok)
	assert.NotEmpty(t, rec.Drain())
}

func TestNew_FileBackendSurvivesRestart(t *testing.T) {
	ctx := testContext(t)
	srv := catalogServer(t)

	cfg := testConfig(srv)
	cfg.Storage = StorageConfig{Backend: BackendFile, Dir: t.TempDir()}

	first, err := New(ctx, cfg, Deps{Notifier: notify.Nop})
	require.NoError(t, err)
	require.Len(t, first.Session.Packages(ctx), 1)
	first.Session.AddPackage(ctx, first.Session.Packages(ctx)[0])
	first.Close()

	// The catalog is gone, but the snapshots are not.
	srv.Close()

	second, err := New(ctx, cfg, Deps{Notifier: notify.Nop})
	require.NoError(t, err)
	t.Cleanup(second.Close)

	basket := second.Session.Basket()
	require.Len(t, basket, 1)
	assert.Equal(t, "Starter", basket[0].Item.Name)
	assert.Equal(t, 1, basket[0].Quantity)
	assert.Len(t, second.Session.Packages(ctx), 1)
}

func TestNew_RemotePlacer(t *testing.T) {
	ctx := testContext(t)
	srv := catalogServer(t)

	checkout := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout", r.URL.Path)
		_, _ = io.WriteString(w, `{"id": "ord-42", "status": "processed", "subtotal": "4.50",
			"discount": "0", "total": "4.50", "createdAt": "2024-05-01T12:00:00Z"}`)
	}))
	t.Cleanup(checkout.Close)

	cfg := testConfig(srv)
	cfg.Checkout.Endpoint = checkout.URL

	a, err := New(ctx, cfg, Deps{})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	s := a.Session
	require.Len(t, s.Products(ctx), 2)
	_, err = s.AddProductByID(ctx, "2")
	require.NoError(t, err)

	o, err := s.Checkout(ctx, session.ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, "ord-42", o.ID)
	assert.Empty(t, s.Cart())
}

func TestNew_InvalidCouponBase(t *testing.T) {
	ctx := testContext(t)
	cfg := testConfig(catalogServer(t))
	cfg.Coupons.Bases = []string{filepath.Join(t.TempDir(), "missing.gz")}

	_, err := New(ctx, cfg, Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load coupons")
}

func names[T interface{ ItemName() string }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ItemName())
	}
	return out
}
