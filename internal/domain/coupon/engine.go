package coupon

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Engine validates coupon codes against a fixed catalog and computes
// discounts. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	catalog *Catalog
}

// NewEngine creates an Engine backed by catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Validate resolves code and checks it against subtotal. It returns
// ErrNotFound for empty or unknown codes and *MinimumNotMetError when the
// subtotal is below the coupon's minimum purchase.
//
// Callers re-run Validate whenever the subtotal changes.
func (e *Engine) Validate(code string, subtotal decimal.Decimal) (Rule, error) {
	rule, ok := e.catalog.Find(code)
	if !ok {
		return Rule{}, ErrNotFound
	}
	if rule.HasMinimum() && subtotal.LessThan(rule.MinPurchase) {
		return Rule{}, &MinimumNotMetError{Code: rule.Code, Required: rule.MinPurchase}
	}
	return rule, nil
}

// Discount computes the amount rule takes off subtotal, rounded to cents.
// The result is never negative and never exceeds subtotal.
func Discount(rule Rule, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch rule.Kind {
	case KindPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case KindFixed:
		amount = decimal.Min(rule.Value, subtotal)
	default:
		return decimal.Zero
	}

	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}
