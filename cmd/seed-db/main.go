// Command seed-db loads the product and package catalogs into PostgreSQL so the
// funnel can run with Catalog.Source=postgres.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-funnel/internal/domain/product"
	"github.com/xenking/kart-funnel/internal/remote"
	"github.com/xenking/kart-funnel/internal/storage/postgres"
	"github.com/xenking/kart-funnel/internal/wire"
)

// catalogStore is the write side of the postgres catalog.
type catalogStore interface {
	SaveProducts(ctx context.Context, products []product.Product) error
	SavePackages(ctx context.Context, packages []product.Package) error
}

type options struct {
	baseURL      string
	productsFile string
	packagesFile string
}

func main() {
	var (
		databaseURL string
		opts        options
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.baseURL, "base-url", "https://api.tamkeen.center", "storefront API to copy the catalog from")
	flag.StringVar(&opts.productsFile, "products-file", "", "JSON products snapshot to load instead of the API")
	flag.StringVar(&opts.packagesFile, "packages-file", "", "JSON packages snapshot to load instead of the API")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		ctx = zctx.Base(ctx, lg)

		lg.Info("Connecting to database")
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		lg.Info("Running migrations")
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}

		client, err := remote.New(opts.baseURL)
		if err != nil {
			return errors.Wrap(err, "create client")
		}
		if err := seed(ctx, client, postgres.NewCatalogSource(pool), opts); err != nil {
			return err
		}

		lg.Info("Seed completed")
		return nil
	})
}

func seed(ctx context.Context, src product.Source, dst catalogStore, opts options) error {
	lg := zctx.From(ctx)

	products, err := load(ctx, opts.productsFile, product.ProductCodec, src.Products)
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	if err := dst.SaveProducts(ctx, products); err != nil {
		return errors.Wrap(err, "save products")
	}
	lg.Info("Seeded products", zap.Int("count", len(products)))

	packages, err := load(ctx, opts.packagesFile, product.PackageCodec, src.Packages)
	if err != nil {
		return errors.Wrap(err, "load packages")
	}
	if err := dst.SavePackages(ctx, packages); err != nil {
		return errors.Wrap(err, "save packages")
	}
	lg.Info("Seeded packages", zap.Int("count", len(packages)))

	return nil
}

// load reads a JSON snapshot from path when set, otherwise fetches.
func load[T any](ctx context.Context, path string, codec wire.Codec[T], fetch func(context.Context) ([]T, error)) ([]T, error) {
	if path == "" {
		return fetch(ctx)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	return wire.DecodeArray(codec, data)
}
