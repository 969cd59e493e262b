// Package pool implements a connection pool built from one lightweight
// worker per slot, each rendezvousing with callers over a blocking
// transfer handoff rather than a mutex-guarded free list. See DESIGN.md
// for how each piece (Slot, Worker, Rendezvous, Pool, expiry timer) is
// grounded.
package pool
