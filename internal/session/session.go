// Package session is the thin adapter between UI events and the purchasing
// core. It owns no global state: every collaborator is passed in, and every
// derived value is recomputed from the stores on read.
package session

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-funnel/internal/catalog"
	"github.com/xenking/kart-funnel/internal/domain/cart"
	"github.com/xenking/kart-funnel/internal/domain/coupon"
	"github.com/xenking/kart-funnel/internal/domain/order"
	"github.com/xenking/kart-funnel/internal/domain/pricing"
	"github.com/xenking/kart-funnel/internal/domain/product"
	"github.com/xenking/kart-funnel/internal/notify"
)

// ErrUnauthenticated is returned by Checkout when the user is not signed in.
var ErrUnauthenticated = errors.New("authentication required")

// Scope selects which stores a total or checkout covers.
type Scope string

const (
	ScopeCart   Scope = "cart"
	ScopeBasket Scope = "basket"
	ScopeAll    Scope = "all"
)

// UnknownScopeError is returned for a scope other than cart, basket or all.
type UnknownScopeError struct {
	Scope Scope
}

func (e *UnknownScopeError) Error() string {
	return "unknown checkout scope " + string(e.Scope)
}

// Deps are the collaborators of a Session.
type Deps struct {
	Cart     *cart.Store[product.Product]
	Basket   *cart.Store[product.Package]
	Products *catalog.Cache[product.Product]
	Packages *catalog.Cache[product.Package]
	// Finder resolves products missing from the cached catalog. Optional.
	Finder   product.Finder
	Coupons  *coupon.Engine
	Checkout *order.Service
	Notifier notify.Notifier
	// Authenticated reports whether the user is signed in. Nil means no gate.
	Authenticated func() bool
}

// Options tunes a Session.
type Options struct {
	// Unified folds every scope into ScopeAll: one total, one coupon and one
	// order across cart and basket.
	Unified       bool
	MinTermLength int
}

// Session is one user's purchasing funnel.
type Session struct {
	deps Deps
	opts Options
	slot coupon.Slot
}

// New creates a Session.
func New(deps Deps, opts Options) *Session {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop
	}
	if opts.MinTermLength == 0 {
		opts.MinTermLength = catalog.DefaultMinTermLength
	}
	return &Session{deps: deps, opts: opts}
}

// Close stops outstanding catalog fetches.
func (s *Session) Close() {
	if s.deps.Products != nil {
		s.deps.Products.Close()
	}
	if s.deps.Packages != nil {
		s.deps.Packages.Close()
	}
}

func (s *Session) scope(sc Scope) (Scope, error) {
	switch sc {
	case ScopeCart, ScopeBasket, ScopeAll:
	case "":
		sc = ScopeAll
	default:
		return "", &UnknownScopeError{Scope: sc}
	}
	if s.opts.Unified {
		return ScopeAll, nil
	}
	return sc, nil
}

func (s *Session) subtotal(sc Scope) (decimal.Decimal, int) {
	var (
		sum   = decimal.Zero
		lines int
	)
	if sc == ScopeCart || sc == ScopeAll {
		ls := s.deps.Cart.Snapshot()
		sum = sum.Add(pricing.Subtotal(ls))
		lines += len(ls)
	}
	if sc == ScopeBasket || sc == ScopeAll {
		ls := s.deps.Basket.Snapshot()
		sum = sum.Add(pricing.Subtotal(ls))
		lines += len(ls)
	}
	return sum, lines
}

func (s *Session) notify(ctx context.Context, level notify.Level, msg string) {
	s.deps.Notifier.Notify(ctx, notify.Notification{Level: level, Message: msg})
}

// Totals returns the price breakdown for sc. The applied coupon counts only
// when it was applied to the same scope.
func (s *Session) Totals(sc Scope) (pricing.Totals, error) {
	sc, err := s.scope(sc)
	if err != nil {
		return pricing.Totals{}, err
	}
	subtotal, _ := s.subtotal(sc)

	var rule *coupon.Rule
	if applied, ok := s.slot.Get(); ok && Scope(applied.Scope) == sc {
		rule = &applied.Rule
	}
	return pricing.Calculate(subtotal, rule), nil
}

// CanCheckout reports whether sc has any lines.
func (s *Session) CanCheckout(sc Scope) bool {
	sc, err := s.scope(sc)
	if err != nil {
		return false
	}
	_, n := s.subtotal(sc)
	return n > 0
}
