package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-funnel/internal/notify"
	"github.com/xenking/kart-funnel/internal/storage"
	"github.com/xenking/kart-funnel/internal/wire"
)

// Store owns one line collection and keeps its durable snapshot in step with
// memory. Persistence failures are logged and never returned: the in-memory
// state stays authoritative for the session.
type Store[T Item] struct {
	mu       sync.Mutex
	state    State[T]
	key      string
	kv       storage.KV
	codec    wire.Codec[Line[T]]
	notifier notify.Notifier
}

// Options configures a Store.
type Options struct {
	// Name is used in notifications, e.g. "cart" in "Shirt added to cart".
	// Defaults to the storage key.
	Name     string
	Notifier notify.Notifier
}

// Open creates a Store under key and hydrates it from the durable snapshot.
// A missing snapshot starts empty; an unreadable or corrupt one is logged and
// also starts empty. A corrupt snapshot is deleted.
func Open[T Item](ctx context.Context, kv storage.KV, key string, item wire.Codec[T], opts Options) *Store[T] {
	if opts.Name == "" {
		opts.Name = key
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop
	}
	s := &Store[T]{
		state:    State[T]{Name: opts.Name, Lines: []Line[T]{}},
		key:      key,
		kv:       kv,
		codec:    LineCodec(item),
		notifier: opts.Notifier,
	}

	lg := zctx.From(ctx)
	data, err := kv.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s
	case err != nil:
		lg.Warn("Load snapshot failed, starting empty",
			zap.String("key", key),
			zap.Error(err),
		)
		return s
	}

	lines, err := wire.DecodeArray(s.codec, data)
	if err != nil {
		lg.Warn("Load snapshot failed, starting empty",
			zap.String("key", key),
			zap.Error(errors.Wrap(err, "decode snapshot")),
		)
		if err := kv.Delete(ctx, key); err != nil {
			lg.Warn("Delete corrupt snapshot failed",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return s
	}
	s.state.Lines = normalize(lines)
	return s
}

// Key returns the storage key the store persists under.
func (s *Store[T]) Key() string { return s.key }

// Add inserts item or increments its existing line.
func (s *Store[T]) Add(ctx context.Context, item T) []Line[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, effects := Add(s.state, item)
	return s.commit(ctx, next, effects)
}

// SetQuantity sets the quantity of the line holding id; zero removes it.
// A negative quantity returns *InvalidQuantityError and leaves state as is.
func (s *Store[T]) SetQuantity(ctx context.Context, id string, n int) ([]Line[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, effects, err := SetQuantity(s.state, id, n)
	if err != nil {
		return s.snapshot(), err
	}
	return s.commit(ctx, next, effects), nil
}

// Remove drops the line holding id, if present.
func (s *Store[T]) Remove(ctx context.Context, id string) []Line[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, effects := Remove(s.state, id)
	return s.commit(ctx, next, effects)
}

// Clear empties the store and persists the empty collection.
func (s *Store[T]) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, effects := Clear(s.state)
	s.commit(ctx, next, effects)
}

// Snapshot returns a copy of the current lines in insertion order.
func (s *Store[T]) Snapshot() []Line[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Len returns the number of lines.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Lines)
}

func (s *Store[T]) snapshot() []Line[T] {
	return append([]Line[T]{}, s.state.Lines...)
}

func (s *Store[T]) commit(ctx context.Context, next State[T], effects []Effect) []Line[T] {
	s.state = next
	for _, eff := range effects {
		switch eff := eff.(type) {
		case Persist:
			s.persist(ctx)
		case Notify:
			s.notifier.Notify(ctx, eff.Notification)
		}
	}
	return s.snapshot()
}

func (s *Store[T]) persist(ctx context.Context) {
	data := wire.EncodeArray(s.codec, s.state.Lines)
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		zctx.From(ctx).Warn("Persist snapshot failed",
			zap.String("key", s.key),
			zap.Int("lines", len(s.state.Lines)),
			zap.Error(err),
		)
	}
}
