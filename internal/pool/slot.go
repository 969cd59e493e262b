package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Slot wraps at most one physical connection behind a one-permit busy
// lock. It is constructed by a Worker, offered to callers over the
// Rendezvous, and destroyed by the same Worker that built it, never by
// a caller. Exactly one of {worker, caller} holds the permit at a time.
type Slot struct {
	factory PhysicalFactory

	sem    *semaphore.Weighted
	held   atomic.Bool
	closed atomic.Bool // marks an overflow slot whose Close already ran

	mu        sync.Mutex
	phys      PhysicalConnection
	createdAt time.Time

	overflow bool // non-reusable: Close really closes, never returned to a worker
}

func newSlot(factory PhysicalFactory) *Slot {
	return &Slot{factory: factory, sem: semaphore.NewWeighted(1)}
}

// newOverflowSlot wraps an already-open physical connection obtained
// directly from the factory on the overflow path. It is not owned by
// any Worker.
func newOverflowSlot(phys PhysicalConnection) *Slot {
	s := &Slot{overflow: true}
	s.phys = phys
	s.createdAt = time.Now()
	return s
}

// Acquire blocks until the busy permit is available or ctx is done. On
// cancellation it returns ctx's error and does not hold the permit. Only
// a Slot's owning Worker calls Acquire; callers receive a Slot already
// holding the permit via a successful rendezvous transfer and give it
// back with Release.
func (s *Slot) Acquire(ctx context.Context) error {
	if s.sem == nil {
		return nil // overflow slots have no shared permit to contend on
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.held.Store(true)
	return nil
}

// Release returns the permit. Idempotent: a double release is a no-op
// rather than a corruption or a panic.
func (s *Slot) Release() {
	if s.sem == nil {
		return
	}
	if s.held.CompareAndSwap(true, false) {
		s.sem.Release(1)
	}
}

// Close is the consumer-facing operation: it releases the slot back to
// the pool. It never closes the underlying physical connection, which
// remains the owning Worker's responsibility, except for an overflow
// slot, which has no Worker and so closes for real.
func (s *Slot) Close() error {
	if s.overflow {
		if s.closed.CompareAndSwap(false, true) {
			s.mu.Lock()
			phys := s.phys
			s.mu.Unlock()
			if phys != nil {
				return phys.Close()
			}
		}
		return nil
	}
	s.Release()
	return nil
}

// Phys materializes the physical connection on first call and stamps
// createdAt in the same critical section, so age is always measured
// from the moment the connection actually opened rather than from
// construction.
func (s *Slot) Phys(ctx context.Context) (PhysicalConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phys != nil {
		return s.phys, nil
	}
	phys, err := s.factory.Open(ctx)
	if err != nil {
		return nil, err
	}
	s.phys = phys
	s.createdAt = time.Now()
	return s.phys, nil
}

// Unwrap returns the underlying physical connection, materializing it on
// first call exactly as Phys does. Returns nil only if that open fails.
func (s *Slot) Unwrap() PhysicalConnection {
	phys, err := s.Phys(context.Background())
	if err != nil {
		return nil
	}
	return phys
}

// IsWrapperFor reports whether a Slot can stand in for the physical
// connection capability. There is exactly one wrapped type here, so this
// is a trivial always-true check.
func (s *Slot) IsWrapperFor() bool { return true }

func (s *Slot) hasPhys() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phys != nil
}

// AgeMillis returns time elapsed since the physical connection was
// materialized, or 0 if it never has been.
func (s *Slot) AgeMillis() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phys == nil {
		return 0
	}
	return time.Since(s.createdAt).Milliseconds()
}

// IsClosed passes through to the physical connection. A never-opened
// slot is vacuously not closed.
func (s *Slot) IsClosed() bool {
	s.mu.Lock()
	phys := s.phys
	s.mu.Unlock()
	if phys == nil {
		return false
	}
	return phys.IsClosed()
}

// IsValid passes through to the physical connection. A never-opened slot
// is vacuously valid.
func (s *Slot) IsValid(timeoutSeconds int) bool {
	s.mu.Lock()
	phys := s.phys
	s.mu.Unlock()
	if phys == nil {
		return true
	}
	return phys.IsValid(timeoutSeconds)
}

// closePhysical closes the underlying physical connection if one was
// opened. Called only by the owning Worker, on replenish or termination.
func (s *Slot) closePhysical() error {
	s.mu.Lock()
	phys := s.phys
	s.phys = nil
	s.mu.Unlock()
	if phys == nil {
		return nil
	}
	return phys.Close()
}
