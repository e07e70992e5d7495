package session

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-funnel/internal/catalog"
	"github.com/xenking/kart-funnel/internal/domain/product"
)

// Products loads the product catalog, fetching it on first use.
func (s *Session) Products(ctx context.Context) []product.Product {
	if s.deps.Products == nil {
		return []product.Product{}
	}
	return s.deps.Products.Load(ctx)
}

// Packages loads the package catalog, fetching it on first use.
func (s *Session) Packages(ctx context.Context) []product.Package {
	if s.deps.Packages == nil {
		return []product.Package{}
	}
	return s.deps.Packages.Load(ctx)
}

// Prefetch starts background fetches of both catalogs.
func (s *Session) Prefetch() {
	if s.deps.Products != nil {
		s.deps.Products.Prefetch()
	}
	if s.deps.Packages != nil {
		s.deps.Packages.Prefetch()
	}
}

// RefreshCatalog re-fetches both catalogs concurrently and waits for them.
// A failed fetch falls back to the cached snapshot and its error is returned.
func (s *Session) RefreshCatalog(ctx context.Context) error {
	var g errgroup.Group
	if s.deps.Products != nil {
		g.Go(func() error {
			_, err := s.deps.Products.Reload(ctx)
			return err
		})
	}
	if s.deps.Packages != nil {
		g.Go(func() error {
			_, err := s.deps.Packages.Reload(ctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "refresh catalog")
	}
	return nil
}

// Search matches term against the last known product catalog without
// blocking on the network.
func (s *Session) Search(term string) []product.Product {
	return catalog.Search(s.catalogProducts(), term, s.opts.MinTermLength)
}

// SearchPackages matches term against the last known package catalog.
func (s *Session) SearchPackages(term string) []product.Package {
	var items []product.Package
	if s.deps.Packages != nil {
		items = s.deps.Packages.Snapshot()
	}
	return catalog.Search(items, term, s.opts.MinTermLength)
}

func (s *Session) catalogProducts() []product.Product {
	if s.deps.Products == nil {
		return []product.Product{}
	}
	return s.deps.Products.Snapshot()
}
