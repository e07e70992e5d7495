// Package catalog caches the remote product and package catalogs with
// cache-then-network semantics: readers always get the last known snapshot
// immediately, while at most one fetch per catalog is in flight.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/kart-funnel/internal/notify"
	"github.com/xenking/kart-funnel/internal/storage"
	"github.com/xenking/kart-funnel/internal/wire"
)

// ErrClosed is reported when a fetch is requested or completes after Close.
var ErrClosed = errors.New("catalog cache closed")

// FetchFunc fetches the full catalog from its authoritative source.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Options configures a Cache.
type Options struct {
	// Name is used in notifications. Defaults to the storage key.
	Name string
	// Timeout bounds a single fetch. Zero means no timeout.
	Timeout       time.Duration
	Notifier      notify.Notifier
	MeterProvider metric.MeterProvider
}

// Cache holds one catalog in memory, mirrors it to durable storage and falls
// back to the mirrored snapshot when the source is unreachable.
type Cache[T any] struct {
	key      string
	name     string
	fetchFn  FetchFunc[T]
	kv       storage.KV
	codec    wire.Codec[T]
	timeout  time.Duration
	notifier notify.Notifier
	fallback metric.Int64Counter

	group singleflight.Group

	// ctx bounds the cache lifetime; fetches run under it, not under the
	// caller's context.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	items  []T
	fresh  bool
	closed bool
}

// New creates a Cache for key and hydrates it from the durable snapshot. The
// cache lives until ctx is done or Close is called.
func New[T any](ctx context.Context, key string, fetch FetchFunc[T], kv storage.KV, codec wire.Codec[T], opts Options) *Cache[T] {
	if opts.Name == "" {
		opts.Name = key
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}
	fallback, err := opts.MeterProvider.Meter("github.com/xenking/kart-funnel/internal/catalog").
		Int64Counter("kart.catalog.fallbacks",
			metric.WithDescription("Catalog reads served from the durable snapshot after a failed fetch"),
		)
	if err != nil {
		fallback = noop.Int64Counter{}
	}

	lifetime, cancel := context.WithCancel(ctx)
	c := &Cache[T]{
		key:      key,
		name:     opts.Name,
		fetchFn:  fetch,
		kv:       kv,
		codec:    codec,
		timeout:  opts.Timeout,
		notifier: opts.Notifier,
		fallback: fallback,
		ctx:      lifetime,
		cancel:   cancel,
		items:    []T{},
	}
	c.hydrate(ctx)
	return c
}

func (c *Cache[T]) hydrate(ctx context.Context) {
	data, err := c.kv.Get(ctx, c.key)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err == nil {
		var items []T
		if items, err = wire.DecodeArray(c.codec, data); err == nil {
			c.items = items
			return
		}
	}
	zctx.From(ctx).Warn("Load catalog snapshot failed",
		zap.String("key", c.key),
		zap.Error(err),
	)
}

// Snapshot returns the last known catalog without blocking.
func (c *Cache[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T{}, c.items...)
}

// Load returns the catalog, fetching it on the first call of the session.
// Once a fetch has succeeded the in-memory copy is reused until Refresh.
func (c *Cache[T]) Load(ctx context.Context) []T {
	c.mu.RLock()
	fresh := c.fresh
	c.mu.RUnlock()
	if fresh {
		return c.Snapshot()
	}
	return c.Refresh(ctx)
}

// Refresh forces a fetch. Concurrent calls share one request. When the fetch
// fails, or ctx is done first, the last known snapshot is returned.
func (c *Cache[T]) Refresh(ctx context.Context) []T {
	items, _ := c.Reload(ctx)
	return items
}

// Reload is Refresh that also reports why the snapshot was served instead of
// fresh data: the fetch error, ctx.Err() or ErrClosed.
func (c *Cache[T]) Reload(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.Snapshot(), ErrClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()

	ch := c.group.DoChan(c.key, func() (any, error) {
		return c.fetch()
	})
	select {
	case res := <-ch:
		c.wg.Done()
		if res.Err != nil {
			return c.Snapshot(), errors.Wrapf(res.Err, "fetch %s", c.name)
		}
		return append([]T{}, res.Val.([]T)...), nil
	case <-ctx.Done():
		go func() {
			<-ch
			c.wg.Done()
		}()
		return c.Snapshot(), ctx.Err()
	}
}

// Prefetch starts a background fetch bound to the cache lifetime.
func (c *Cache[T]) Prefetch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Refresh(c.ctx)
	}()
}

// Close cancels any outstanding fetch and waits for it to finish. A response
// arriving after Close is discarded.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Cache[T]) fetch() ([]T, error) {
	ctx := c.ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	items, err := c.fetchFn(ctx)
	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if err != nil {
		c.onFailure(err)
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.items = items
	c.fresh = true
	c.mu.Unlock()

	c.persist(items)
	return items, nil
}

func (c *Cache[T]) persist(items []T) {
	data := wire.EncodeArray(c.codec, items)
	if err := c.kv.Put(c.ctx, c.key, data); err != nil {
		zctx.From(c.ctx).Warn("Persist catalog snapshot failed",
			zap.String("key", c.key),
			zap.Error(err),
		)
	}
}

func (c *Cache[T]) onFailure(err error) {
	c.mu.RLock()
	cached := len(c.items)
	c.mu.RUnlock()

	zctx.From(c.ctx).Warn("Catalog fetch failed, serving cached snapshot",
		zap.String("key", c.key),
		zap.Int("cached", cached),
		zap.Error(err),
	)
	c.fallback.Add(c.ctx, 1, metric.WithAttributes(attribute.String("catalog", c.key)))
	c.notifier.Notify(c.ctx, notify.Notification{
		Level:   notify.LevelInfo,
		Message: "Could not refresh " + c.name + ", showing saved results",
	})
}
