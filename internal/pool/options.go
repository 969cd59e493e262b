package pool

import (
	"time"

	"github.com/relaypool/connpool/internal/poolerr"
)

// LogFn is a non-blocking, concurrency-safe event sink a Pool reports its
// lifecycle events through. A nil LogFn disables logging entirely.
type LogFn func(message string, data map[string]any)

// Options configures a Pool. Zero-value fields are filled in with
// defaults, except PoolSize and ConnectionTimeout, whose zero values are
// meaningful on their own: PoolSize 0 means every Acquire takes the
// overflow path (no worker ever offers a reusable Slot), and a
// non-positive ConnectionTimeout means Acquire waits indefinitely for a
// worker to offer one. Callers who want the conventional pooled
// behavior set both explicitly, as internal/config.DefaultConfig does.
type Options struct {
	PoolSize int

	ConnectionTimeout time.Duration
	IdleTimeout       time.Duration
	MaxLifetime       time.Duration
	ValidationTimeout time.Duration

	ThrowOnConnectionTimeout bool
	ValidateOnCheckout       bool

	LogFn        LogFn
	PreReconnect PreReconnectFunc

	// MaxAcquireRetries bounds the caller-side dead-slot retry loop in
	// Pool.Acquire. Zero means "use PoolSize+1", the default derived
	// bound.
	MaxAcquireRetries int
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 10 * time.Minute
	}
	if o.MaxLifetime <= 0 {
		o.MaxLifetime = 30 * time.Minute
	}
	if o.ValidationTimeout <= 0 {
		o.ValidationTimeout = 5 * time.Second
	}
	if o.MaxAcquireRetries <= 0 {
		o.MaxAcquireRetries = o.PoolSize + 1
	}
	return o
}

// Validate rejects configurations that can never produce a usable pool.
// PoolSize 0 and a non-positive ConnectionTimeout are both deliberately
// accepted; see the Options doc comment.
func (o Options) Validate() error {
	if o.PoolSize < 0 {
		return poolerr.ErrInvalidConfig
	}
	return nil
}
