package order

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xenking/kart-funnel/internal/domain/coupon"
)

// --- Mock implementations ---

type mockSource struct {
	lines   []Line
	cleared int
}

func (m *mockSource) OrderLines() []Line { return m.lines }

func (m *mockSource) Clear(context.Context) {
	m.cleared++
	m.lines = nil
}

type mockPlacer struct {
	err     error
	lastReq *Request
}

func (m *mockPlacer) Place(ctx context.Context, req Request) (*Order, error) {
	m.lastReq = &req
	if m.err != nil {
		return nil, m.err
	}
	return newTestPlacer().Place(ctx, req)
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestPlacer() *LocalPlacer {
	n := 0
	return &LocalPlacer{
		now: func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		newID: func() (string, error) {
			n++
			return "order-" + strconv.Itoa(n), nil
		},
	}
}

func newEngine() *coupon.Engine {
	return coupon.NewEngine(coupon.NewCatalog(coupon.DefaultRules()...))
}

func line(id string, price string, qty int) Line {
	return Line{ItemID: id, Kind: KindProduct, Name: "Item " + id, Price: d(price), Quantity: qty}
}

func applied(t *testing.T, code string, subtotal decimal.Decimal) *coupon.Slot {
	t.Helper()
	rule, err := newEngine().Validate(code, subtotal)
	require.NoError(t, err)
	var s coupon.Slot
	s.Set(coupon.Applied{Rule: rule, Subtotal: subtotal})
	return &s
}

// --- Tests ---

func TestCheckout_EmptyCart(t *testing.T) {
	placer := &mockPlacer{}
	svc := NewService(placer, newEngine())
	cart := &mockSource{}
	slot := applied(t, "FLAT5", d("10"))

	_, err := svc.Checkout(context.Background(), []Source{cart}, slot)

	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, placer.lastReq, "placer not called")
	assert.Zero(t, cart.cleared, "storage untouched")
	_, ok := slot.Get()
	assert.True(t, ok, "coupon kept")
}

func TestCheckout_NoCoupon(t *testing.T) {
	svc := NewService(newTestPlacer(), newEngine())
	cart := &mockSource{lines: []Line{line("p1", "10.00", 2), line("p2", "20.00", 1)}}

	o, err := svc.Checkout(context.Background(), []Source{cart}, nil)

	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, o.Status)
	assert.True(t, d("40.00").Equal(o.Total))
	assert.True(t, decimal.Zero.Equal(o.Discount))
	assert.Empty(t, o.CouponCode)
	assert.Len(t, o.Lines, 2)
	assert.Equal(t, 1, cart.cleared)
}

func TestCheckout_WithCoupon(t *testing.T) {
	svc := NewService(newTestPlacer(), newEngine())
	cart := &mockSource{lines: []Line{line("p1", "30.00", 2)}}
	slot := applied(t, "save10", d("60"))

	o, err := svc.Checkout(context.Background(), []Source{cart}, slot)

	require.NoError(t, err)
	assert.True(t, d("60.00").Equal(o.Subtotal))
	assert.True(t, d("6.00").Equal(o.Discount))
	assert.True(t, d("54.00").Equal(o.Total))
	assert.Equal(t, "SAVE10", o.CouponCode)

	_, ok := slot.Get()
	assert.False(t, ok, "coupon cleared")
	assert.Equal(t, 1, cart.cleared)
}

func TestCheckout_FixedDiscountFlooredAtZero(t *testing.T) {
	svc := NewService(newTestPlacer(), newEngine())
	cart := &mockSource{lines: []Line{line("p1", "3.00", 1)}}

	o, err := svc.Checkout(context.Background(), []Source{cart}, applied(t, "FLAT5", d("3")))

	require.NoError(t, err)
	assert.True(t, d("3.00").Equal(o.Discount))
	assert.True(t, decimal.Zero.Equal(o.Total))
}

func TestCheckout_CouponNoLongerEligible(t *testing.T) {
	placer := &mockPlacer{}
	svc := NewService(placer, newEngine())
	cart := &mockSource{lines: []Line{line("p1", "40.00", 1)}}
	slot := applied(t, "SAVE10", d("60"))

	_, err := svc.Checkout(context.Background(), []Source{cart}, slot)

	var minErr *coupon.MinimumNotMetError
	require.ErrorAs(t, err, &minErr)
	assert.Nil(t, placer.lastReq)
	assert.Zero(t, cart.cleared)
}

func TestCheckout_PlacerErrorLeavesStateUntouched(t *testing.T) {
	placer := &mockPlacer{err: errors.New("connection refused")}
	svc := NewService(placer, newEngine())
	cart := &mockSource{lines: []Line{line("p1", "10.00", 1)}}
	basket := &mockSource{lines: []Line{line("pkg", "99.00", 1)}}
	slot := applied(t, "FLAT5", d("109"))

	_, err := svc.Checkout(context.Background(), []Source{cart, basket}, slot)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "place order")
	assert.Zero(t, cart.cleared)
	assert.Zero(t, basket.cleared)
	_, ok := slot.Get()
	assert.True(t, ok)
}

func TestCheckout_MultipleSourcesSecondCallRejected(t *testing.T) {
	placer := &mockPlacer{}
	svc := NewService(placer, newEngine())
	cart := &mockSource{lines: []Line{line("p1", "10.00", 1)}}
	basket := &mockSource{lines: []Line{line("pkg", "99.00", 2)}}

	o, err := svc.Checkout(context.Background(), []Source{cart, basket}, nil)
	require.NoError(t, err)
	assert.True(t, d("208.00").Equal(o.Total))
	require.Len(t, placer.lastReq.Lines, 2)
	assert.Equal(t, "p1", placer.lastReq.Lines[0].ItemID)
	assert.Equal(t, "pkg", placer.lastReq.Lines[1].ItemID)

	_, err = svc.Checkout(context.Background(), []Source{cart, basket}, nil)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestLocalPlacer_UniqueIDs(t *testing.T) {
	p := NewLocalPlacer()
	req := Request{Lines: []Line{line("p1", "1.00", 1)}}

	seen := make(map[string]struct{})
	for range 100 {
		o, err := p.Place(context.Background(), req)
		require.NoError(t, err)
		_, dup := seen[o.ID]
		require.False(t, dup, "duplicate id %s", o.ID)
		seen[o.ID] = struct{}{}
	}
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestCheckout_Telemetry(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	svc := NewService(newTestPlacer(), newEngine(), WithTracerProvider(tp), WithMeterProvider(mp))
	ctx := context.Background()

	_, err := svc.Checkout(ctx, []Source{&mockSource{lines: []Line{line("p1", "10.00", 1)}}}, nil)
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, []Source{&mockSource{}}, nil)
	require.ErrorIs(t, err, ErrEmptyCart)

	assert.Equal(t, int64(1), counterValue(t, reader, "kart.checkout.placed"))
	assert.Equal(t, int64(1), counterValue(t, reader, "kart.checkout.failed"))

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "order.Checkout", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}
