package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/relaypool/connpool/internal/poolerr"
)

// Stats is a point-in-time snapshot of pool activity, suitable for a
// health or metrics endpoint.
type Stats struct {
	PoolSize        int
	Acquired        int64
	Released        int64
	Overflowed      int64
	Replenished     int64
	AcquireTimeouts int64
}

// Pool is a fixed-size set of workers, each owning one Slot and offering
// it over a shared Rendezvous. Acquire and Close are the only operations
// a caller needs.
type Pool struct {
	factory    PhysicalFactory
	opts       Options
	rendezvous *Rendezvous
	workers    []*worker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed atomic.Bool

	acquired        atomic.Int64
	released        atomic.Int64
	overflowed      atomic.Int64
	replenished     atomic.Int64
	acquireTimeouts atomic.Int64
}

// New starts PoolSize workers and returns the running Pool. Workers begin
// offering connections immediately; none is opened until a caller
// actually touches the Slot it receives.
func New(factory PhysicalFactory, opts Options) (*Pool, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		factory:    factory,
		opts:       opts,
		rendezvous: newRendezvous(),
		ctx:        ctx,
		cancel:     cancel,
	}

	p.workers = make([]*worker, opts.PoolSize)
	for i := range p.workers {
		w := newWorker(i, factory, opts, p.rendezvous)
		p.workers[i] = w
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx)
		}()
	}

	return p, nil
}

// Acquire hands a caller exclusive use of one Slot. It blocks until a
// worker offers a connection, ConnectionTimeout elapses, or ctx-less
// cancellation happens via Close.
//
// A Slot handed back by Take may prove dead on inspection (IsClosed, or
// failed validation when ValidateOnCheckout is set); Acquire cannot
// close it itself, since only the owning worker may touch the physical
// connection. Instead it interrupts that worker so it replenishes, and
// tries again, making at most MaxAcquireRetries attempts in all.
func (p *Pool) Acquire() (*Slot, error) {
	for attempt := 0; attempt < p.opts.MaxAcquireRetries; attempt++ {
		if p.closed.Load() {
			return nil, poolerr.ErrPoolClosed
		}

		slot, retry, err := p.acquireOnce()
		if err != nil {
			return nil, err
		}
		if !retry {
			p.acquired.Add(1)
			return slot, nil
		}
		p.replenished.Add(1)
	}
	return nil, poolerr.ErrAcquireRetriesExceeded
}

// acquireOnce performs a single rendezvous-or-overflow attempt. retry is
// true when the returned slot was dead and its owning worker has already
// been interrupted to replenish; the caller should try again.
func (p *Pool) acquireOnce() (slot *Slot, retry bool, err error) {
	if len(p.workers) == 0 {
		// No worker will ever offer a reusable Slot; every Acquire takes
		// the overflow branch directly instead of waiting on a rendezvous
		// that can never be satisfied.
		return p.onConnectionTimeout()
	}

	ctx := p.ctx
	cancel := func() {}
	if p.opts.ConnectionTimeout > 0 {
		ctx, cancel = context.WithTimeout(p.ctx, p.opts.ConnectionTimeout)
	}
	defer cancel()

	h, outcome, takeErr := p.rendezvous.Take(ctx)
	if takeErr != nil {
		if p.closed.Load() {
			return nil, false, poolerr.ErrPoolClosed
		}
		if outcome == Cancelled && ctx.Err() != nil {
			return p.onConnectionTimeout()
		}
		return nil, false, takeErr
	}

	s := h.Slot
	if p.opts.ValidateOnCheckout {
		phys, openErr := s.Phys(ctx)
		if openErr != nil {
			p.log("Got a closed/invalid connection - retrying", map[string]any{"worker": h.WorkerIndex})
			p.workers[h.WorkerIndex].interrupt()
			return nil, true, nil
		}
		if phys.IsClosed() || !s.IsValid(validationSeconds(p.opts.ValidationTimeout)) {
			p.log("Got a closed/invalid connection - retrying", map[string]any{"worker": h.WorkerIndex})
			p.workers[h.WorkerIndex].interrupt()
			return nil, true, nil
		}
	} else if s.IsClosed() {
		// Cheap default check: a materialized Slot found closed on
		// checkout is dead regardless of ValidateOnCheckout, which only
		// governs the more expensive round-trip IsValid check.
		p.log("Got a closed/invalid connection - retrying", map[string]any{"worker": h.WorkerIndex})
		p.workers[h.WorkerIndex].interrupt()
		return nil, true, nil
	}

	return s, false, nil
}

// log reports a Pool-side lifecycle event through opts.LogFn, mirroring
// how worker reports its own events; a nil LogFn disables it.
func (p *Pool) log(message string, data map[string]any) {
	if p.opts.LogFn == nil {
		return
	}
	p.opts.LogFn(message, data)
}

// onConnectionTimeout implements the overflow path: when waiting for a
// reusable Slot exceeds ConnectionTimeout, either fail outright or hand
// the caller a fresh, non-pooled connection.
func (p *Pool) onConnectionTimeout() (*Slot, bool, error) {
	p.acquireTimeouts.Add(1)

	if p.opts.ThrowOnConnectionTimeout {
		return nil, false, poolerr.ErrAcquireTimeout
	}

	p.log("Creating non-reusable connection (slow path)", nil)

	openCtx := p.ctx
	cancel := func() {}
	if p.opts.ConnectionTimeout > 0 {
		openCtx, cancel = context.WithTimeout(p.ctx, p.opts.ConnectionTimeout)
	}
	defer cancel()

	phys, err := p.factory.Open(openCtx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", poolerr.ErrFactoryFailed, err)
	}

	p.overflowed.Add(1)
	return newOverflowSlot(phys), false, nil
}

// Release returns a Slot obtained from Acquire. It is equivalent to
// calling s.Close directly but also updates Stats.
func (p *Pool) Release(s *Slot) error {
	p.released.Add(1)
	return s.Close()
}

// Close stops every worker and waits for them to exit. It is idempotent
// and safe to call more than once.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	return nil
}

// Stats returns a snapshot of pool activity counters.
func (p *Pool) Stats() Stats {
	return Stats{
		PoolSize:        len(p.workers),
		Acquired:        p.acquired.Load(),
		Released:        p.released.Load(),
		Overflowed:      p.overflowed.Load(),
		Replenished:     p.replenished.Load(),
		AcquireTimeouts: p.acquireTimeouts.Load(),
	}
}
