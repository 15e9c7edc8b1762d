package application

import (
	"context"
	"sync"
)

// LockedUnit builds scopes from a KeyLocker and repositories that commit
// every call on their own. It backs the memory store and the Redis lock
// backend.
type LockedUnit struct {
	locks    KeyLocker
	payments PaymentRepository
	orders   OrderRepository
}

func NewLockedUnit(locks KeyLocker, payments PaymentRepository, orders OrderRepository) *LockedUnit {
	return &LockedUnit{locks: locks, payments: payments, orders: orders}
}

func (u *LockedUnit) Do(ctx context.Context, fn func(ctx context.Context, s Scope) error) error {
	s := &lockedScope{unit: u, held: make(map[string]bool)}
	defer s.release()
	return fn(ctx, s)
}

type lockedScope struct {
	unit *LockedUnit

	mu      sync.Mutex
	held    map[string]bool
	unlocks []func()
}

// Lock is a no-op for a key the scope already holds.
func (s *lockedScope) Lock(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[key] {
		return nil
	}
	unlock, err := s.unit.locks.Lock(ctx, key)
	if err != nil {
		return err
	}
	s.held[key] = true
	s.unlocks = append(s.unlocks, unlock)
	return nil
}

func (s *lockedScope) Payments() PaymentRepository { return s.unit.payments }
func (s *lockedScope) Orders() OrderRepository     { return s.unit.orders }

// release unlocks in reverse acquisition order.
func (s *lockedScope) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.unlocks) - 1; i >= 0; i-- {
		s.unlocks[i]()
	}
	s.unlocks = nil
}
