package coupon

import (
	"context"
	"sync"
)

// Slot holds at most one applied coupon. Setting a coupon replaces any prior
// one; coupons never stack.
type Slot struct {
	mu      sync.Mutex
	applied *Applied
}

// Set replaces the applied coupon.
func (s *Slot) Set(a Applied) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = &a
}

// Get returns a copy of the applied coupon, if any.
func (s *Slot) Get() (Applied, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied == nil {
		return Applied{}, false
	}
	return *s.applied, true
}

// Clear drops the applied coupon.
func (s *Slot) Clear(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = nil
}
