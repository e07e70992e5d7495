// Package memory implements storage.KV on top of a map. Values are copied on
// the way in and out so callers can never alias stored bytes.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/kart-funnel/internal/storage"
)

var _ storage.KV = (*KV)(nil)

// KV is an in-process storage.KV.
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty KV.
func New() *KV {
	return &KV{data: make(map[string][]byte)}
}

func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *KV) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *KV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}
