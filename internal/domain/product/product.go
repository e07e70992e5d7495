package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested catalog record does not exist.
var ErrNotFound = errors.New("product not found")

// Product is an immutable one-off catalog record.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	StoreID     string
	Image       string
}

// Package is a subscription-style catalog record sold into the basket.
// ProfitTiers holds the tiered profit percentages in tier order.
type Package struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Uses        int
	ProfitTiers []decimal.Decimal
	StoreID     string
	Image       string
}

func (p Product) ItemID() string             { return p.ID }
func (p Product) ItemName() string           { return p.Name }
func (p Product) UnitPrice() decimal.Decimal { return p.Price }

// SearchText returns the fields matched by catalog search.
func (p Product) SearchText() (name, description string) { return p.Name, p.Description }

func (p Package) ItemID() string             { return p.ID }
func (p Package) ItemName() string           { return p.Name }
func (p Package) UnitPrice() decimal.Decimal { return p.Price }

// SearchText returns the fields matched by catalog search. Packages carry no
// description.
func (p Package) SearchText() (name, description string) { return p.Name, "" }

// Source fetches the full catalog from wherever it is authoritatively stored.
type Source interface {
	Products(ctx context.Context) ([]Product, error)
	Packages(ctx context.Context) ([]Package, error)
}

// Finder looks up one product by identifier, returning ErrNotFound for an
// unknown id.
type Finder interface {
	Product(ctx context.Context, id string) (*Product, error)
}
