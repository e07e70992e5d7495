package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/kart-funnel/internal/domain/product"
	"github.com/xenking/kart-funnel/internal/notify"
	"github.com/xenking/kart-funnel/internal/storage"
	"github.com/xenking/kart-funnel/internal/storage/memory"
	"github.com/xenking/kart-funnel/internal/wire"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

// --- Mock implementations ---

type failingKV struct {
	storage.KV
	putErr error
	getErr error
	puts   int
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.KV.Get(ctx, key)
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	return f.KV.Put(ctx, key, value)
}

// --- Helpers ---

func observedContext() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zctx.Base(context.Background(), zap.New(core)), logs
}

func openCart(ctx context.Context, kv storage.KV, n notify.Notifier) *Store[product.Product] {
	return Open(ctx, kv, storage.KeyCart, product.ProductCodec, Options{Notifier: n})
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := openCart(ctx, kv, nil)

	s.Add(ctx, shirt())
	s.Add(ctx, mug())
	s.Add(ctx, shirt())
	_, err := s.SetQuantity(ctx, "2", 3)
	require.NoError(t, err)

	reopened := openCart(ctx, kv, nil)
	if diff := cmp.Diff(s.Snapshot(), reopened.Snapshot(), decimalEqual); diff != "" {
		t.Errorf("durable snapshot mismatch (-memory +durable):\n%s", diff)
	}

	s.Remove(ctx, "1")
	reopened = openCart(ctx, kv, nil)
	require.Len(t, reopened.Snapshot(), 1)
	assert.Equal(t, "2", reopened.Snapshot()[0].Item.ID)
	assert.Equal(t, 3, reopened.Snapshot()[0].Quantity)
}

func TestStore_ClearPersistsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := openCart(ctx, kv, nil)
	s.Add(ctx, shirt())

	s.Clear(ctx)

	assert.Zero(t, s.Len())
	data, err := kv.Get(ctx, storage.KeyCart)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestStore_WriteFailureIsLoggedNotReturned(t *testing.T) {
	ctx, logs := observedContext()
	kv := &failingKV{KV: memory.New(), putErr: errors.New("disk full")}
	s := openCart(ctx, kv, nil)

	lines := s.Add(ctx, shirt())

	require.Len(t, lines, 1, "in-memory state stays authoritative")
	assert.Equal(t, 1, kv.puts)

	entries := logs.FilterMessage("Persist snapshot failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, storage.KeyCart, entries[0].ContextMap()["key"])
	assert.Equal(t, "disk full", entries[0].ContextMap()["error"])

	// Next successful write catches durable state up.
	kv.putErr = nil
	s.Add(ctx, mug())
	reopened := openCart(ctx, kv, nil)
	assert.Len(t, reopened.Snapshot(), 2)
}

func TestStore_OpenFallsBackToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(kv *failingKV)
		wantLog bool
	}{
		{
			name:    "missing snapshot",
			prepare: func(*failingKV) {},
		},
		{
			name: "corrupt snapshot",
			prepare: func(kv *failingKV) {
				require.NoError(t, kv.KV.Put(context.Background(), storage.KeyCart, []byte(`{not json`)))
			},
			wantLog: true,
		},
		{
			name: "fractional quantity",
			prepare: func(kv *failingKV) {
				require.NoError(t, kv.KV.Put(context.Background(), storage.KeyCart,
					[]byte(`[{"item":{"id":"1","name":"Shirt","price":"20"},"quantity":"2.7"}]`)))
			},
			wantLog: true,
		},
		{
			name: "read failure",
			prepare: func(kv *failingKV) {
				kv.getErr = errors.New("permission denied")
			},
			wantLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, logs := observedContext()
			kv := &failingKV{KV: memory.New()}
			tt.prepare(kv)

			s := openCart(ctx, kv, nil)

			assert.Empty(t, s.Snapshot())
			if tt.wantLog {
				assert.Equal(t, 1, logs.FilterMessage("Load snapshot failed, starting empty").Len())
			} else {
				assert.Zero(t, logs.Len())
			}
		})
	}
}

func TestStore_OpenDeletesCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	require.NoError(t, kv.Put(ctx, storage.KeyCart, []byte(`{not json`)))

	s := openCart(ctx, kv, nil)

	assert.Empty(t, s.Snapshot())
	_, err := kv.Get(ctx, storage.KeyCart)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_OpenKeepsSnapshotOnReadFailure(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{KV: memory.New()}
	require.NoError(t, kv.KV.Put(ctx, storage.KeyCart, []byte(`[]`)))
	kv.getErr = errors.New("permission denied")

	openCart(ctx, kv, nil)

	data, err := kv.KV.Get(ctx, storage.KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestStore_OpenNormalizesLegacySnapshot(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	legacy := wire.EncodeArray(LineCodec(product.ProductCodec), []Line[product.Product]{
		{Item: shirt(), Quantity: 1},
		{Item: shirt(), Quantity: 1},
		{Item: mug(), Quantity: 0},
	})
	require.NoError(t, kv.Put(ctx, storage.KeyCart, legacy))

	s := openCart(ctx, kv, nil)

	want := []Line[product.Product]{{Item: shirt(), Quantity: 2}}
	if diff := cmp.Diff(want, s.Snapshot(), decimalEqual); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestStore_Notifications(t *testing.T) {
	ctx := context.Background()
	var rec notify.Recorder
	s := Open(ctx, memory.New(), storage.KeyBasket, product.PackageCodec, Options{Notifier: &rec})

	pkg := product.Package{ID: "p1", Name: "Gold", Price: d("99.00"), Uses: 10}
	s.Add(ctx, pkg)
	s.Remove(ctx, "p1")

	assert.Equal(t, []notify.Notification{
		{Level: notify.LevelSuccess, Message: "Gold added to basket"},
		{Level: notify.LevelInfo, Message: "Gold removed from basket"},
	}, rec.Drain())
}

func TestStore_SetQuantityNegativeDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{KV: memory.New()}
	s := openCart(ctx, kv, nil)
	s.Add(ctx, shirt())
	puts := kv.puts

	lines, err := s.SetQuantity(ctx, "1", -2)

	var qErr *InvalidQuantityError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, puts, kv.puts)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}
