package pool

import (
	"context"
	"time"
)

// Outcome is the result of a Rendezvous Offer or Take attempt.
type Outcome int

const (
	// Transferred means the handoff completed: a producer's Offer was
	// picked up by a consumer's Take, or vice versa.
	Transferred Outcome = iota
	// TimedOut means no counterpart arrived within the given wait.
	TimedOut
	// Cancelled means ctx was done before a counterpart arrived.
	Cancelled
	// Expired means a Worker's max-lifetime timer fired before a
	// consumer claimed the offer. Distinct from TimedOut/Cancelled
	// because it carries a different consequence: replenish, not retry.
	Expired
)

// handoff is what a Worker posts on the Rendezvous: a Slot paired with
// the index of the Worker offering it.
type handoff struct {
	Slot        *Slot
	WorkerIndex int
}

// Rendezvous is a blocking, unbuffered single-item transfer: a producer
// and a consumer must both be present for a handoff to occur, and an
// unconsumed Offer is never queued for later. Go's unbuffered channel is
// exactly this primitive.
type Rendezvous struct {
	ch chan handoff
}

func newRendezvous() *Rendezvous {
	return &Rendezvous{ch: make(chan handoff)}
}

// Offer posts item and waits up to idleTimeout for a consumer, or until
// expired fires, or until ctx is done, whichever comes first.
func (r *Rendezvous) Offer(ctx context.Context, item handoff, idleTimeout time.Duration, expired <-chan time.Time) (Outcome, error) {
	var idleC <-chan time.Time
	if idleTimeout > 0 {
		t := time.NewTimer(idleTimeout)
		defer t.Stop()
		idleC = t.C
	}

	select {
	case r.ch <- item:
		return Transferred, nil
	case <-idleC:
		return TimedOut, nil
	case <-expired:
		return Expired, nil
	case <-ctx.Done():
		return Cancelled, ctx.Err()
	}
}

// Take waits for a producer to hand off an item, until ctx is done.
// Callers needing a bounded wait derive ctx with context.WithTimeout and
// distinguish "timed out" from "cancelled" via ctx.Err().
func (r *Rendezvous) Take(ctx context.Context) (handoff, Outcome, error) {
	select {
	case item := <-r.ch:
		return item, Transferred, nil
	case <-ctx.Done():
		return handoff{}, Cancelled, ctx.Err()
	}
}
