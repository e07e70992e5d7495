// Package pricing aggregates subtotal, discount and total from store lines and
// an optional applied coupon. Nothing here is stored: totals are recomputed on
// every read.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-funnel/internal/domain/cart"
	"github.com/xenking/kart-funnel/internal/domain/coupon"
)

// Totals is the derived price breakdown of a checkout scope.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal sums unit price times quantity over lines.
func Subtotal[T cart.Item](lines []cart.Line[T]) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Calculate derives the discount and total for subtotal. A nil rule means no
// coupon. The total is floored at zero and rounded to cents.
func Calculate(subtotal decimal.Decimal, rule *coupon.Rule) Totals {
	discount := decimal.Zero
	if rule != nil {
		discount = coupon.Discount(*rule, subtotal)
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal.Round(2),
		Discount: discount.Round(2),
		Total:    total.Round(2),
	}
}
