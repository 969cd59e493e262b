package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/relaypool/connpool/internal/pool"
)

// MockConnection is an in-memory pool.PhysicalConnection with no real
// backend. Tests call Kill to simulate a connection that failed on the
// server side between checkouts.
type MockConnection struct {
	ID int64

	mu     sync.Mutex
	closed bool
	dead   bool
}

func (c *MockConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockConnection) IsValid(timeoutSeconds int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.dead
}

func (c *MockConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Kill marks the connection dead without closing it, simulating a
// backend-side drop that the pool has not yet observed.
func (c *MockConnection) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead = true
}

var _ pool.PhysicalConnection = (*MockConnection)(nil)

// MockFactory hands out MockConnections and counts how many it has
// opened, so tests can assert on replenish behavior without a real
// database.
type MockFactory struct {
	nextID atomic.Int64
	opened atomic.Int64

	mu       sync.Mutex
	failNext bool
}

func NewMockFactory() *MockFactory {
	return &MockFactory{}
}

func (f *MockFactory) Open(ctx context.Context) (pool.PhysicalConnection, error) {
	f.mu.Lock()
	fail := f.failNext
	f.failNext = false
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("mock factory: forced open failure")
	}

	id := f.nextID.Add(1)
	f.opened.Add(1)
	return &MockConnection{ID: id}, nil
}

// FailNextOpen makes the next Open call return an error, once.
func (f *MockFactory) FailNextOpen() {
	f.mu.Lock()
	f.failNext = true
	f.mu.Unlock()
}

// Opened returns how many connections this factory has successfully
// opened over its lifetime.
func (f *MockFactory) Opened() int64 {
	return f.opened.Load()
}

var _ pool.PhysicalFactory = (*MockFactory)(nil)
