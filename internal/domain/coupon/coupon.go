package coupon

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage takes a percentage of the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed takes a fixed amount, capped at the subtotal.
	KindFixed Kind = "fixed"
)

// ErrNotFound is returned when a code is empty or matches no coupon.
var ErrNotFound = errors.New("coupon not found")

// MinimumNotMetError is returned when a coupon exists but the subtotal is
// below its minimum purchase threshold.
type MinimumNotMetError struct {
	Code     string
	Required decimal.Decimal
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum purchase of %s", e.Code, e.Required.StringFixed(2))
}

// Rule defines a coupon's discount behaviour and eligibility constraint.
// A zero MinPurchase means no minimum.
type Rule struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	MinPurchase decimal.Decimal
	Description string
}

// HasMinimum reports whether the rule gates on a minimum purchase.
func (r Rule) HasMinimum() bool {
	return r.MinPurchase.IsPositive()
}

// Applied is a coupon that passed validation, together with the subtotal it
// was validated against and the checkout scope it belongs to.
type Applied struct {
	Rule     Rule
	Subtotal decimal.Decimal
	Scope    string
}
