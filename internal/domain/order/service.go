package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-funnel/internal/domain/coupon"
)

const instrumentationName = "github.com/xenking/kart-funnel/internal/domain/order"

// Source is a line store taking part in a checkout.
type Source interface {
	OrderLines() []Line
	Clear(ctx context.Context)
}

// CouponSlot holds the coupon applied to the checkout, if any.
type CouponSlot interface {
	Get() (coupon.Applied, bool)
	Clear(ctx context.Context)
}

// Service finalizes checkouts: it enforces the non-empty precondition,
// re-validates the applied coupon, delegates pricing to a Placer and resets
// the sources once the order exists.
type Service struct {
	placer Placer
	engine *coupon.Engine

	tracer trace.Tracer
	placed metric.Int64Counter
	failed metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.placed, s.failed = counters(mp) }
}

// NewService creates a checkout Service.
func NewService(placer Placer, engine *coupon.Engine, opts ...Option) *Service {
	s := &Service{
		placer: placer,
		engine: engine,
		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
	}
	s.placed, s.failed = counters(otel.GetMeterProvider())
	for _, o := range opts {
		o(s)
	}
	return s
}

func counters(mp metric.MeterProvider) (placed, failed metric.Int64Counter) {
	meter := mp.Meter(instrumentationName)
	placed, err := meter.Int64Counter("kart.checkout.placed",
		metric.WithDescription("Orders placed"),
	)
	if err != nil {
		placed = noop.Int64Counter{}
	}
	failed, err = meter.Int64Counter("kart.checkout.failed",
		metric.WithDescription("Checkouts rejected or failed"),
	)
	if err != nil {
		failed = noop.Int64Counter{}
	}
	return placed, failed
}

// Checkout places an order over every line in sources, using the coupon in
// slot when one is applied. On success every source and the slot are
// cleared. On any error nothing is cleared.
func (s *Service) Checkout(ctx context.Context, sources []Source, slot CouponSlot) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			s.failed.Add(ctx, 1)
		}
		span.End()
	}()

	var lines []Line
	for _, src := range sources {
		lines = append(lines, src.OrderLines()...)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	req := Request{Lines: lines}
	if slot != nil {
		if applied, ok := slot.Get(); ok {
			rule, err := s.engine.Validate(applied.Rule.Code, req.Subtotal())
			if err != nil {
				return nil, errors.Wrap(err, "validate coupon")
			}
			req.Coupon = &rule
		}
	}

	o, err := s.placer.Place(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}

	for _, src := range sources {
		src.Clear(ctx)
	}
	if slot != nil {
		slot.Clear(ctx)
	}

	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int("order.lines", len(o.Lines)),
		attribute.String("order.total", o.Total.StringFixed(2)),
	)
	s.placed.Add(ctx, 1)
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.Total.StringFixed(2)),
		zap.String("coupon", o.CouponCode),
	)
	return o, nil
}
