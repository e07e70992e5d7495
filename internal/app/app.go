// Package app wires the purchasing funnel from configuration. It is the single
// place where collaborators are constructed; nothing below it reaches for
// global state.
package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-funnel/internal/catalog"
	"github.com/xenking/kart-funnel/internal/coupon/ingest"
	"github.com/xenking/kart-funnel/internal/domain/cart"
	"github.com/xenking/kart-funnel/internal/domain/coupon"
	"github.com/xenking/kart-funnel/internal/domain/order"
	"github.com/xenking/kart-funnel/internal/domain/product"
	"github.com/xenking/kart-funnel/internal/notify"
	"github.com/xenking/kart-funnel/internal/remote"
	"github.com/xenking/kart-funnel/internal/session"
	"github.com/xenking/kart-funnel/internal/storage"
	"github.com/xenking/kart-funnel/internal/storage/file"
	"github.com/xenking/kart-funnel/internal/storage/memory"
	"github.com/xenking/kart-funnel/internal/storage/postgres"
)

// Deps are the collaborators supplied by the embedding UI.
type Deps struct {
	Notifier      notify.Notifier
	Authenticated func() bool

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// App is a wired funnel.
type App struct {
	Session *session.Session

	pool *pgxpool.Pool
}

// New creates all dependencies from cfg. The logger is taken from ctx; the
// catalog caches live until ctx is done or Close is called.
func New(ctx context.Context, cfg *Config, deps Deps) (_ *App, rerr error) {
	lg := zctx.From(ctx)
	lg.Info("Initializing",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("catalog", cfg.Catalog.Source),
		zap.Bool("unified_checkout", cfg.Checkout.Unified),
	)

	a := &App{}
	defer func() {
		if rerr != nil {
			a.Close()
		}
	}()

	if deps.Notifier == nil {
		deps.Notifier = notify.Log{}
	}

	if cfg.needsPostgres() {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		a.pool = pool

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
	}

	kv, err := a.newKV(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create storage")
	}

	source, err := a.newSource(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create catalog source")
	}

	coupons, err := newCouponCatalog(ctx, cfg.Coupons)
	if err != nil {
		return nil, errors.Wrap(err, "load coupons")
	}
	engine := coupon.NewEngine(coupons)
	lg.Info("Coupons loaded", zap.Int("count", coupons.Len()))

	placer, err := newPlacer(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create placer")
	}

	var orderOpts []order.Option
	if deps.TracerProvider != nil {
		orderOpts = append(orderOpts, order.WithTracerProvider(deps.TracerProvider))
	}
	if deps.MeterProvider != nil {
		orderOpts = append(orderOpts, order.WithMeterProvider(deps.MeterProvider))
	}

	cacheOpts := func(name string) catalog.Options {
		return catalog.Options{
			Name:          name,
			Timeout:       cfg.Catalog.Timeout,
			Notifier:      deps.Notifier,
			MeterProvider: deps.MeterProvider,
		}
	}

	finder, _ := source.(product.Finder)
	a.Session = session.New(session.Deps{
		Cart:     cart.Open(ctx, kv, storage.KeyCart, product.ProductCodec, cart.Options{Notifier: deps.Notifier}),
		Basket:   cart.Open(ctx, kv, storage.KeyBasket, product.PackageCodec, cart.Options{Notifier: deps.Notifier}),
		Products: catalog.New(ctx, storage.KeyProducts, source.Products, kv, product.ProductCodec, cacheOpts("products")),
		Packages: catalog.New(ctx, storage.KeyPackages, source.Packages, kv, product.PackageCodec, cacheOpts("packages")),
		Finder:   finder,
		Coupons:  engine,
		Checkout: order.NewService(placer, engine, orderOpts...),
		Notifier: deps.Notifier,

		Authenticated: deps.Authenticated,
	}, session.Options{
		Unified:       cfg.Checkout.Unified,
		MinTermLength: cfg.Search.MinTermLength,
	})
	return a, nil
}

// Close stops background fetches and releases the database pool.
func (a *App) Close() {
	if a.Session != nil {
		a.Session.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *App) newKV(cfg *Config) (storage.KV, error) {
	switch cfg.Storage.Backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendPostgres:
		return postgres.NewKV(a.pool), nil
	default:
		return file.New(cfg.Storage.Dir)
	}
}

func (a *App) newSource(cfg *Config) (product.Source, error) {
	if cfg.Catalog.Source == SourcePostgres {
		return postgres.NewCatalogSource(a.pool), nil
	}
	opts := []remote.Option{remote.WithTimeout(cfg.Catalog.Timeout)}
	if cfg.Catalog.MediaBaseURL != "" {
		opts = append(opts, remote.WithMediaBaseURL(cfg.Catalog.MediaBaseURL))
	}
	return remote.New(cfg.Catalog.BaseURL, opts...)
}

func newPlacer(cfg *Config) (order.Placer, error) {
	if cfg.Checkout.Endpoint == "" {
		return order.NewLocalPlacer(), nil
	}
	return remote.New(cfg.Checkout.Endpoint, remote.WithTimeout(cfg.Catalog.Timeout))
}

func newCouponCatalog(ctx context.Context, cfg CouponsConfig) (*coupon.Catalog, error) {
	c := coupon.NewCatalog(coupon.DefaultRules()...)
	if len(cfg.Bases) == 0 {
		return c, nil
	}
	codes, err := ingest.Codes(ctx, cfg.Bases, ingest.Options{
		MinBases: cfg.MinBases,
		Capacity: cfg.BloomCapacity,
	})
	if err != nil {
		return nil, err
	}
	return c.Extend(ingest.Rules(codes)...), nil
}
