package session

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-funnel/internal/domain/cart"
	"github.com/xenking/kart-funnel/internal/domain/coupon"
	"github.com/xenking/kart-funnel/internal/domain/order"
	"github.com/xenking/kart-funnel/internal/domain/product"
	"github.com/xenking/kart-funnel/internal/notify"
)

type storeSource[T cart.Item] struct {
	store *cart.Store[T]
	kind  string
}

func (s storeSource[T]) OrderLines() []order.Line {
	return order.Lines(s.store.Snapshot(), s.kind)
}

func (s storeSource[T]) Clear(ctx context.Context) {
	s.store.Clear(ctx)
}

// scopedSlot exposes the applied coupon only to a checkout of its own scope.
type scopedSlot struct {
	slot  *coupon.Slot
	scope Scope
}

func (s scopedSlot) Get() (coupon.Applied, bool) {
	a, ok := s.slot.Get()
	if !ok || Scope(a.Scope) != s.scope {
		return coupon.Applied{}, false
	}
	return a, true
}

func (s scopedSlot) Clear(ctx context.Context) {
	if _, ok := s.Get(); ok {
		s.slot.Clear(ctx)
	}
}

// Checkout places an order for sc. It requires an authenticated user and a
// non-empty scope. On success the scope's stores and its coupon are cleared,
// and a coupon applied to an overlapping scope is re-validated.
func (s *Session) Checkout(ctx context.Context, sc Scope) (*order.Order, error) {
	if s.deps.Authenticated != nil && !s.deps.Authenticated() {
		return nil, ErrUnauthenticated
	}
	sc, err := s.scope(sc)
	if err != nil {
		return nil, err
	}

	var sources []order.Source
	if sc == ScopeCart || sc == ScopeAll {
		sources = append(sources, storeSource[product.Product]{store: s.deps.Cart, kind: order.KindProduct})
	}
	if sc == ScopeBasket || sc == ScopeAll {
		sources = append(sources, storeSource[product.Package]{store: s.deps.Basket, kind: order.KindPackage})
	}

	o, err := s.deps.Checkout.Checkout(ctx, sources, scopedSlot{slot: &s.slot, scope: sc})
	if err != nil {
		var minErr *coupon.MinimumNotMetError
		switch {
		case errors.Is(err, order.ErrEmptyCart):
			s.notify(ctx, notify.LevelError, "Your cart is empty")
		case errors.As(err, &minErr):
			s.notify(ctx, notify.LevelError, fmt.Sprintf(
				"Minimum purchase of %s required for coupon %s", minErr.Required.StringFixed(2), minErr.Code))
		default:
			s.notify(ctx, notify.LevelError, "Checkout failed, please try again")
		}
		return nil, err
	}

	// A coupon held by another scope may have lost lines it counted.
	s.revalidate(ctx)
	s.notify(ctx, notify.LevelSuccess, "Order placed successfully")
	return o, nil
}
