// Package poolerr collects the sentinel errors the pool surfaces to callers.
package poolerr

import "errors"

// Lifecycle errors
var (
	// ErrPoolClosed is returned by Acquire once Close has been called.
	ErrPoolClosed = errors.New("pool: closed")
)

// Acquisition errors
var (
	// ErrAcquireTimeout is returned when connectionTimeout elapses and
	// overflow is disabled.
	ErrAcquireTimeout = errors.New("pool: acquire timed out")

	// ErrAcquireRetriesExceeded is returned when the caller-side dead-slot
	// retry loop exhausts its bound without obtaining a valid slot.
	ErrAcquireRetriesExceeded = errors.New("pool: exceeded retries acquiring a valid connection")
)

// Factory errors
var (
	// ErrFactoryFailed wraps a PhysicalFactory.Open failure surfaced on the
	// overflow path. A pooled Slot opens its connection lazily in
	// Slot.Phys, which returns the factory's error to its caller
	// unwrapped; only the ValidateOnCheckout check inside Acquire turns
	// such a failure into a replenish and a retry.
	ErrFactoryFailed = errors.New("pool: physical factory failed to open a connection")
)

// Configuration errors
var (
	ErrInvalidConfig = errors.New("pool: invalid configuration")
)
