package session

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-funnel/internal/domain/coupon"
	"github.com/xenking/kart-funnel/internal/domain/order"
	"github.com/xenking/kart-funnel/internal/domain/pricing"
	"github.com/xenking/kart-funnel/internal/notify"
)

// ApplyCoupon validates code against the current subtotal of sc and, on
// success, replaces any applied coupon. On failure the previous coupon stays.
func (s *Session) ApplyCoupon(ctx context.Context, code string, sc Scope) (pricing.Totals, error) {
	sc, err := s.scope(sc)
	if err != nil {
		return pricing.Totals{}, err
	}

	subtotal, lines := s.subtotal(sc)
	if lines == 0 {
		s.notify(ctx, notify.LevelError, "Add items before applying a coupon")
		return s.mustTotals(sc), order.ErrEmptyCart
	}

	rule, err := s.deps.Coupons.Validate(code, subtotal)
	if err != nil {
		var minErr *coupon.MinimumNotMetError
		switch {
		case errors.As(err, &minErr):
			s.notify(ctx, notify.LevelError, fmt.Sprintf(
				"Minimum purchase of %s required for coupon %s", minErr.Required.StringFixed(2), minErr.Code))
		case errors.Is(err, coupon.ErrNotFound):
			s.notify(ctx, notify.LevelError, "Invalid coupon code")
		}
		return s.mustTotals(sc), err
	}

	s.slot.Set(coupon.Applied{Rule: rule, Subtotal: subtotal, Scope: string(sc)})
	s.notify(ctx, notify.LevelSuccess, fmt.Sprintf("Coupon %s applied", rule.Code))
	return s.mustTotals(sc), nil
}

// RemoveCoupon drops the applied coupon, if any.
func (s *Session) RemoveCoupon(ctx context.Context) {
	s.slot.Clear(ctx)
}

// AppliedCoupon returns the applied coupon, if any.
func (s *Session) AppliedCoupon() (coupon.Applied, bool) {
	return s.slot.Get()
}

func (s *Session) mustTotals(sc Scope) pricing.Totals {
	t, _ := s.Totals(sc)
	return t
}

// revalidate re-checks the applied coupon against the current subtotal of
// its scope and drops it when the scope is empty or the coupon no longer
// qualifies.
func (s *Session) revalidate(ctx context.Context) {
	applied, ok := s.slot.Get()
	if !ok {
		return
	}
	sc := Scope(applied.Scope)
	subtotal, lines := s.subtotal(sc)

	if lines == 0 {
		s.slot.Clear(ctx)
		s.notify(ctx, notify.LevelInfo, fmt.Sprintf("Coupon %s removed", applied.Rule.Code))
		return
	}

	rule, err := s.deps.Coupons.Validate(applied.Rule.Code, subtotal)
	if err != nil {
		s.slot.Clear(ctx)
		var minErr *coupon.MinimumNotMetError
		if errors.As(err, &minErr) {
			s.notify(ctx, notify.LevelWarning, fmt.Sprintf(
				"Coupon %s removed: minimum purchase of %s no longer met", minErr.Code, minErr.Required.StringFixed(2)))
			return
		}
		s.notify(ctx, notify.LevelWarning, fmt.Sprintf("Coupon %s removed", applied.Rule.Code))
		return
	}
	s.slot.Set(coupon.Applied{Rule: rule, Subtotal: subtotal, Scope: applied.Scope})
}
