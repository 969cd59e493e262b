package pool

import "time"

// expiryTimer is a per-worker, one-shot, cancellable timer used to
// withdraw a pending Offer once its Slot crosses maxLifetime while
// waiting on the Rendezvous. Armed and disarmed on every loop
// iteration, so it must be cheap: a plain time.Timer.
type expiryTimer struct {
	t *time.Timer
}

// arm starts (or restarts) the timer for d and returns its fire channel.
func (e *expiryTimer) arm(d time.Duration) <-chan time.Time {
	e.t = time.NewTimer(d)
	return e.t.C
}

// disarm stops the timer, draining an already-fired-but-unread tick so a
// later arm doesn't observe a stale signal.
func (e *expiryTimer) disarm() {
	if e.t == nil {
		return
	}
	if !e.t.Stop() {
		select {
		case <-e.t.C:
		default:
		}
	}
	e.t = nil
}
