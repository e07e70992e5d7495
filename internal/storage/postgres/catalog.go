package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-funnel/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price, stock, store_id, image
		FROM products ORDER BY position, id`

	getProductByIDSQL = `SELECT id, name, description, price, stock, store_id, image
		FROM products WHERE id = $1`

	listPackagesSQL = `SELECT id, name, price, uses, profit_tiers, store_id, image
		FROM packages ORDER BY position, id`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, stock, store_id, image, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
			stock = EXCLUDED.stock, store_id = EXCLUDED.store_id, image = EXCLUDED.image,
			position = EXCLUDED.position`

	upsertPackageSQL = `INSERT INTO packages (id, name, price, uses, profit_tiers, store_id, image, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, uses = EXCLUDED.uses,
			profit_tiers = EXCLUDED.profit_tiers, store_id = EXCLUDED.store_id,
			image = EXCLUDED.image, position = EXCLUDED.position`
)

var (
	_ product.Source = (*CatalogSource)(nil)
	_ product.Finder = (*CatalogSource)(nil)
)

// CatalogSource serves the product and package catalogs from PostgreSQL.
type CatalogSource struct {
	pool *pgxpool.Pool
}

// NewCatalogSource returns a CatalogSource that uses the given pool.
func NewCatalogSource(pool *pgxpool.Pool) *CatalogSource {
	return &CatalogSource{pool: pool}
}

// Products returns all products in catalog order.
func (r *CatalogSource) Products(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Product returns a single product by its identifier.
func (r *CatalogSource) Product(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// Packages returns all packages in catalog order.
func (r *CatalogSource) Packages(ctx context.Context) ([]product.Package, error) {
	rows, err := r.pool.Query(ctx, listPackagesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list packages")
	}
	return pgx.CollectRows(rows, scanPackage)
}

// SaveProducts upserts products in one transaction, recording their slice
// position as catalog order.
func (r *CatalogSource) SaveProducts(ctx context.Context, products []product.Product) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, p := range products {
			batch.Queue(upsertProductSQL, p.ID, p.Name, p.Description, p.Price, p.Stock, p.StoreID, p.Image, i)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "upsert products")
		}
		return nil
	})
}

// SavePackages upserts packages in one transaction, recording their slice
// position as catalog order.
func (r *CatalogSource) SavePackages(ctx context.Context, packages []product.Package) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, p := range packages {
			tiers := make([]string, len(p.ProfitTiers))
			for j, t := range p.ProfitTiers {
				tiers[j] = t.String()
			}
			batch.Queue(upsertPackageSQL, p.ID, p.Name, p.Price, p.Uses, tiers, p.StoreID, p.Image, i)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "upsert packages")
		}
		return nil
	})
}

func (r *CatalogSource) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.StoreID, &p.Image)
	return p, err
}

func scanPackage(row pgx.CollectableRow) (product.Package, error) {
	var (
		p     product.Package
		tiers []string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Uses, &tiers, &p.StoreID, &p.Image); err != nil {
		return p, err
	}
	p.ProfitTiers = make([]decimal.Decimal, 0, len(tiers))
	for _, t := range tiers {
		v, err := decimal.NewFromString(t)
		if err != nil {
			return p, errors.Wrapf(err, "parse profit tier %q", t)
		}
		p.ProfitTiers = append(p.ProfitTiers, v)
	}
	return p, nil
}
