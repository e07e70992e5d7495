package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-funnel/internal/domain/cart"
	"github.com/xenking/kart-funnel/internal/domain/coupon"
)

// Status is the lifecycle state of an order.
type Status string

// StatusProcessed is the only state an order reaches on the client.
const StatusProcessed Status = "processed"

// Line kinds.
const (
	KindProduct = "product"
	KindPackage = "package"
)

// ErrEmptyCart is returned when checkout is requested with no lines.
var ErrEmptyCart = errors.New("cart is empty")

// Order is the immutable record of a completed checkout.
type Order struct {
	ID         string
	Status     Status
	Lines      []Line
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
	CreatedAt  time.Time
}

// Line is one purchased item as captured at checkout time.
type Line struct {
	ItemID   string
	Kind     string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Total returns price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Lines converts store lines into order lines of kind.
func Lines[T cart.Item](lines []cart.Line[T], kind string) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{
			ItemID:   l.Item.ItemID(),
			Kind:     kind,
			Name:     l.Item.ItemName(),
			Price:    l.Item.UnitPrice(),
			Quantity: l.Quantity,
		}
	}
	return out
}

// Request is the input handed to a Placer.
type Request struct {
	Lines []Line
	// Coupon is the applied coupon rule, nil when none is applied.
	Coupon *coupon.Rule
}

// Subtotal sums the line totals.
func (r Request) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range r.Lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Placer turns a validated request into an order. The local placer prices the
// order in process; a remote placer delegates to the checkout endpoint.
type Placer interface {
	Place(ctx context.Context, req Request) (*Order, error)
}
