package session

import (
	"context"

	"github.com/xenking/kart-funnel/internal/domain/cart"
	"github.com/xenking/kart-funnel/internal/domain/product"
	"github.com/xenking/kart-funnel/internal/notify"
)

// Cart returns the cart lines.
func (s *Session) Cart() []cart.Line[product.Product] { return s.deps.Cart.Snapshot() }

// Basket returns the basket lines.
func (s *Session) Basket() []cart.Line[product.Package] { return s.deps.Basket.Snapshot() }

// AddProduct adds p to the cart.
func (s *Session) AddProduct(ctx context.Context, p product.Product) []cart.Line[product.Product] {
	lines := s.deps.Cart.Add(ctx, p)
	s.revalidate(ctx)
	return lines
}

// AddProductByID adds the catalog product with id to the cart. Ids missing
// from the cached catalog are resolved through Deps.Finder when set.
func (s *Session) AddProductByID(ctx context.Context, id string) ([]cart.Line[product.Product], error) {
	for _, p := range s.catalogProducts() {
		if p.ID == id {
			return s.AddProduct(ctx, p), nil
		}
	}
	if s.deps.Finder == nil {
		return s.deps.Cart.Snapshot(), product.ErrNotFound
	}
	p, err := s.deps.Finder.Product(ctx, id)
	if err != nil {
		return s.deps.Cart.Snapshot(), err
	}
	return s.AddProduct(ctx, *p), nil
}

// SetProductQuantity sets the quantity of a cart line. Zero removes it.
func (s *Session) SetProductQuantity(ctx context.Context, id string, n int) ([]cart.Line[product.Product], error) {
	lines, err := s.deps.Cart.SetQuantity(ctx, id, n)
	if err != nil {
		s.notify(ctx, notify.LevelError, "Quantity must be at least 1")
		return lines, err
	}
	s.revalidate(ctx)
	return lines, nil
}

// RemoveProduct drops a cart line.
func (s *Session) RemoveProduct(ctx context.Context, id string) []cart.Line[product.Product] {
	lines := s.deps.Cart.Remove(ctx, id)
	s.revalidate(ctx)
	return lines
}

// ClearCart empties the cart.
func (s *Session) ClearCart(ctx context.Context) {
	s.deps.Cart.Clear(ctx)
	s.revalidate(ctx)
}

// AddPackage adds p to the basket.
func (s *Session) AddPackage(ctx context.Context, p product.Package) []cart.Line[product.Package] {
	lines := s.deps.Basket.Add(ctx, p)
	s.revalidate(ctx)
	return lines
}

// AddPackageByID adds the catalog package with id to the basket.
func (s *Session) AddPackageByID(ctx context.Context, id string) ([]cart.Line[product.Package], error) {
	if s.deps.Packages != nil {
		for _, p := range s.deps.Packages.Snapshot() {
			if p.ID == id {
				return s.AddPackage(ctx, p), nil
			}
		}
	}
	return s.deps.Basket.Snapshot(), product.ErrNotFound
}

// SetPackageQuantity sets the quantity of a basket line. Zero removes it.
func (s *Session) SetPackageQuantity(ctx context.Context, id string, n int) ([]cart.Line[product.Package], error) {
	lines, err := s.deps.Basket.SetQuantity(ctx, id, n)
	if err != nil {
		s.notify(ctx, notify.LevelError, "Quantity must be at least 1")
		return lines, err
	}
	s.revalidate(ctx)
	return lines, nil
}

// RemovePackage drops a basket line.
func (s *Session) RemovePackage(ctx context.Context, id string) []cart.Line[product.Package] {
	lines := s.deps.Basket.Remove(ctx, id)
	s.revalidate(ctx)
	return lines
}

// ClearBasket empties the basket.
func (s *Session) ClearBasket(ctx context.Context) {
	s.deps.Basket.Clear(ctx)
	s.revalidate(ctx)
}
