package pool

import (
	"context"
	"time"
)

// worker owns exactly one Slot at a time and runs its state machine:
// lazy-open (implicit, via Slot.Phys) → offer on the Rendezvous → await
// reuse or expire → replenish.
type worker struct {
	index      int
	factory    PhysicalFactory
	opts       Options
	rendezvous *Rendezvous
	logf       LogFn

	// replenishRequested carries the Pool-side signal that a caller found
	// this worker's just-transferred Slot invalid and cannot close it
	// itself. Buffered 1, non-blocking send: at most one outstanding
	// replenish request matters at a time.
	replenishRequested chan struct{}
}

func newWorker(index int, factory PhysicalFactory, opts Options, r *Rendezvous) *worker {
	return &worker{
		index:              index,
		factory:            factory,
		opts:               opts,
		rendezvous:         r,
		logf:               opts.LogFn,
		replenishRequested: make(chan struct{}, 1),
	}
}

func (w *worker) interrupt() {
	select {
	case w.replenishRequested <- struct{}{}:
	default:
	}
}

func (w *worker) log(msg string, data map[string]any) {
	if w.logf == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["worker"] = w.index
	w.logf(msg, data)
}

// run is the state machine loop. It returns when ctx is done, having
// closed whatever physical connection the current Slot had opened.
func (w *worker) run(ctx context.Context) {
	current := newSlot(w.factory)
	needsReplenish := false
	var expiry expiryTimer

	for {
		select {
		case <-ctx.Done():
			w.log("worker shutting down", nil)
			w.drainAndClose(current)
			return
		default:
		}

		if needsReplenish {
			w.log("Replenishing connection", nil)
			if w.opts.PreReconnect != nil {
				_ = w.opts.PreReconnect(ctx)
			}
			_ = current.closePhysical()
			current = newSlot(w.factory)
			needsReplenish = false
			continue
		}

		if err := w.acquireCurrent(ctx, current); err != nil {
			if ctx.Err() == nil {
				// Our own replenish-interrupt cancelled the wait, not shutdown.
				w.log("Interrupted while waiting to transfer", nil)
				needsReplenish = true
			}
			continue
		}

		age := current.AgeMillis()
		maxLifetimeMS := w.opts.MaxLifetime.Milliseconds()
		if current.hasPhys() && age >= maxLifetimeMS {
			w.log("Max lifetime exceeded", map[string]any{"age_ms": age})
			current.Release()
			needsReplenish = true
			continue
		}

		remaining := w.opts.MaxLifetime
		if current.hasPhys() {
			remaining = time.Duration(maxLifetimeMS-age) * time.Millisecond
		}
		expiredC := expiry.arm(remaining)

		w.log("Offering reusable connection", nil)
		outcome, err := w.rendezvous.Offer(ctx, handoff{Slot: current, WorkerIndex: w.index}, w.opts.IdleTimeout, expiredC)
		expiry.disarm()

		switch outcome {
		case Transferred:
			// Ownership passed to the caller; loop back and wait for
			// Release (or an interrupt) at the next Acquire.
			continue

		case TimedOut:
			w.log("Idle timeout - checking validity", nil)
			// Reclaim the permit before validating so a validation check
			// can never hold the slot hostage against a concurrent
			// replenish interrupt, then re-acquire.
			current.Release()
			if err := w.acquireCurrent(ctx, current); err != nil {
				continue
			}
			if !current.IsValid(validationSeconds(w.opts.ValidationTimeout)) {
				needsReplenish = true
			} else {
				current.Release()
			}
			continue

		case Expired:
			w.log("Max lifetime exceeded", nil)
			needsReplenish = true
			continue

		case Cancelled:
			current.Release()
			_ = err
			continue
		}
	}
}

// drainAndClose waits for current's busy permit before closing its
// physical connection. If a caller is still holding the Slot when the
// pool shuts down, that caller's in-flight use completes normally; the
// connection is only closed once the caller's own Release frees the
// permit, never out from under it. A caller that never releases blocks
// shutdown indefinitely; that is the caller's bug, not the worker's.
func (w *worker) drainAndClose(s *Slot) {
	_ = s.Acquire(context.Background())
	_ = s.closePhysical()
}

// acquireCurrent blocks on s.Acquire(ctx) but also returns early if this
// worker's replenish signal fires, unblocking the wait the caller-side
// dead-slot path relies on: the caller signals the owning worker via
// interrupt, and the worker performs the replacement.
func (w *worker) acquireCurrent(ctx context.Context, s *Slot) error {
	acqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-w.replenishRequested:
			cancel()
		case <-done:
		}
	}()

	err := s.Acquire(acqCtx)
	close(done)
	return err
}

// validationSeconds converts a millisecond validation timeout to the
// seconds-granularity value drivers expect, rounding sub-second values up
// to one second rather than truncating to zero.
func validationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	seconds := int(d / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
