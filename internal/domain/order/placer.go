package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/kart-funnel/internal/domain/pricing"
)

var _ Placer = (*LocalPlacer)(nil)

// LocalPlacer prices and synthesizes orders without any network round-trip.
type LocalPlacer struct {
	now   func() time.Time
	newID func() (string, error)
}

// NewLocalPlacer creates a LocalPlacer issuing time-ordered UUIDv7 ids.
func NewLocalPlacer() *LocalPlacer {
	return &LocalPlacer{
		now: time.Now,
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

func (p *LocalPlacer) Place(_ context.Context, req Request) (*Order, error) {
	totals := pricing.Calculate(req.Subtotal(), req.Coupon)

	id, err := p.newID()
	if err != nil {
		return nil, errors.Wrap(err, "generate order id")
	}

	o := &Order{
		ID:        id,
		Status:    StatusProcessed,
		Lines:     append([]Line(nil), req.Lines...),
		Subtotal:  totals.Subtotal,
		Discount:  totals.Discount,
		Total:     totals.Total,
		CreatedAt: p.now().UTC(),
	}
	if req.Coupon != nil {
		o.CouponCode = req.Coupon.Code
	}
	return o, nil
}
