package pool_test

import (
	"sync"
	"testing"
	"time"

	"github.com/relaypool/connpool/internal/pool"
	"github.com/relaypool/connpool/internal/storage"
)

func newTestPool(t *testing.T, opts pool.Options, factory *storage.MockFactory) *pool.Pool {
	t.Helper()
	if factory == nil {
		factory = storage.NewMockFactory()
	}
	p, err := pool.New(factory, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestAcquireDoesNotOpenUntilTouched(t *testing.T) {
	factory := storage.NewMockFactory()
	p := newTestPool(t, pool.Options{PoolSize: 2, IdleTimeout: time.Second}, factory)

	slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if factory.Opened() != 0 {
		t.Fatalf("expected no physical connection opened before first use, got %d", factory.Opened())
	}
	if _, err := slot.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}
	if factory.Opened() != 1 {
		t.Fatalf("expected one physical connection after first use, got %d", factory.Opened())
	}
	if err := p.Release(slot); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestConcurrentAcquireReleaseUnderLoad(t *testing.T) {
	p := newTestPool(t, pool.Options{PoolSize: 4, IdleTimeout: 50 * time.Millisecond}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := p.Acquire()
			if err != nil {
				errs <- err
				return
			}
			if _, err := slot.Phys(t.Context()); err != nil {
				errs <- err
				return
			}
			time.Sleep(time.Millisecond)
			errs <- p.Release(slot)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
}

func TestMaxLifetimeTriggersReplenish(t *testing.T) {
	factory := storage.NewMockFactory()
	p := newTestPool(t, pool.Options{
		PoolSize:    1,
		IdleTimeout: 20 * time.Millisecond,
		MaxLifetime: 30 * time.Millisecond,
	}, factory)

	slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := slot.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}
	if err := p.Release(slot); err != nil {
		t.Fatalf("Release: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	// The replacement Slot opens lazily, so touch it to count its open.
	slot2, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire after max lifetime: %v", err)
	}
	if _, err := slot2.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}
	if err := p.Release(slot2); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if factory.Opened() < 2 {
		t.Fatalf("expected the worker to replenish after max lifetime, opened=%d", factory.Opened())
	}
}

func TestIdleTimeoutRevalidatesConnection(t *testing.T) {
	factory := storage.NewMockFactory()
	p := newTestPool(t, pool.Options{
		PoolSize:    1,
		IdleTimeout: 15 * time.Millisecond,
		MaxLifetime: time.Hour,
	}, factory)

	slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := slot.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}
	if err := p.Release(slot); err != nil {
		t.Fatalf("Release: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	slot2, err := p.Acquire()
	if err != nil {
		t.Fatalf("second Acquire after idle timeout: %v", err)
	}
	if err := p.Release(slot2); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if factory.Opened() != 1 {
		t.Fatalf("expected the still-valid connection to be reused, opened=%d", factory.Opened())
	}
}

func TestDeadSlotOnCheckoutTriggersReplenish(t *testing.T) {
	factory := storage.NewMockFactory()
	p := newTestPool(t, pool.Options{
		PoolSize:           1,
		IdleTimeout:        time.Second,
		ValidateOnCheckout: true,
	}, factory)

	slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	phys, err := slot.Phys(t.Context())
	if err != nil {
		t.Fatalf("Phys: %v", err)
	}
	phys.(*storage.MockConnection).Kill()
	if err := p.Release(slot); err != nil {
		t.Fatalf("Release: %v", err)
	}

	slot2, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire after dead slot: %v", err)
	}
	if err := p.Release(slot2); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if factory.Opened() != 2 {
		t.Fatalf("expected the dead connection to be replaced, opened=%d", factory.Opened())
	}
}

func TestClosedSlotReplenishedWithoutValidateOnCheckout(t *testing.T) {
	factory := storage.NewMockFactory()
	p := newTestPool(t, pool.Options{
		PoolSize:    1,
		IdleTimeout: time.Second,
	}, factory)

	slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	phys, err := slot.Phys(t.Context())
	if err != nil {
		t.Fatalf("Phys: %v", err)
	}
	if err := phys.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Release(slot); err != nil {
		t.Fatalf("Release: %v", err)
	}

	slot2, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire after closed slot: %v", err)
	}
	// The replacement Slot opens lazily; touch it so its open is counted.
	if _, err := slot2.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}
	if err := p.Release(slot2); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if factory.Opened() != 2 {
		t.Fatalf("expected the closed connection to be replaced even without ValidateOnCheckout, opened=%d", factory.Opened())
	}
}

func TestOverflowWhenPoolExhausted(t *testing.T) {
	p := newTestPool(t, pool.Options{
		PoolSize:          1,
		IdleTimeout:       time.Hour,
		ConnectionTimeout: 30 * time.Millisecond,
	}, nil)

	held, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := held.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}

	overflow, err := p.Acquire()
	if err != nil {
		t.Fatalf("expected an overflow connection, got error: %v", err)
	}
	if err := overflow.Close(); err != nil {
		t.Fatalf("overflow Close: %v", err)
	}
	if err := p.Release(held); err != nil {
		t.Fatalf("Release: %v", err)
	}

	stats := p.Stats()
	if stats.Overflowed != 1 {
		t.Fatalf("expected one overflow connection recorded, got %d", stats.Overflowed)
	}
}

func TestAcquireTimeoutErrorWhenThrowEnabled(t *testing.T) {
	p := newTestPool(t, pool.Options{
		PoolSize:                 1,
		IdleTimeout:              time.Hour,
		ConnectionTimeout:        20 * time.Millisecond,
		ThrowOnConnectionTimeout: true,
	}, nil)

	held, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := held.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}

	if _, err := p.Acquire(); err == nil {
		t.Fatal("expected ErrAcquireTimeout, got nil")
	}
	if err := p.Release(held); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestCloseStopsAllWorkers(t *testing.T) {
	factory := storage.NewMockFactory()
	p, err := pool.New(factory, pool.Options{PoolSize: 3, IdleTimeout: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := slot.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}
	if err := p.Release(slot); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}

	if _, err := p.Acquire(); err == nil {
		t.Fatal("expected ErrPoolClosed after Close")
	}
}

func TestZeroPoolSizeAlwaysOverflows(t *testing.T) {
	factory := storage.NewMockFactory()
	p := newTestPool(t, pool.Options{
		PoolSize:          0,
		ConnectionTimeout: 20 * time.Millisecond,
	}, factory)

	for i := 0; i < 3; i++ {
		slot, err := p.Acquire()
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		if err := slot.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	stats := p.Stats()
	if stats.Overflowed != 3 {
		t.Fatalf("expected every acquire to overflow with PoolSize 0, got %d", stats.Overflowed)
	}
	if factory.Opened() != 3 {
		t.Fatalf("expected one physical open per overflow acquire, got %d", factory.Opened())
	}
}

func TestNonPositiveConnectionTimeoutWaitsIndefinitely(t *testing.T) {
	factory := storage.NewMockFactory()
	p := newTestPool(t, pool.Options{
		PoolSize:    1,
		IdleTimeout: time.Hour,
		// ConnectionTimeout left at its zero value: Acquire should block
		// until a worker actually offers a Slot rather than overflowing.
	}, factory)

	held, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := held.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}

	acquired := make(chan *pool.Slot, 1)
	go func() {
		slot, err := p.Acquire()
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			return
		}
		acquired <- slot
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned before the held Slot was released")
	case <-time.After(100 * time.Millisecond):
	}

	if err := p.Release(held); err != nil {
		t.Fatalf("Release: %v", err)
	}

	select {
	case slot := <-acquired:
		if err := p.Release(slot); err != nil {
			t.Fatalf("Release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second Acquire never unblocked after Release")
	}

	if stats := p.Stats(); stats.Overflowed != 0 {
		t.Fatalf("expected no overflow with an indefinite wait, got %d", stats.Overflowed)
	}
}

func TestUnwrapMaterializesPhysicalConnection(t *testing.T) {
	factory := storage.NewMockFactory()
	p := newTestPool(t, pool.Options{PoolSize: 1, IdleTimeout: time.Second}, factory)

	slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if factory.Opened() != 0 {
		t.Fatalf("expected no physical connection opened before Unwrap, got %d", factory.Opened())
	}
	if phys := slot.Unwrap(); phys == nil {
		t.Fatal("expected Unwrap to return a materialized connection")
	}
	if factory.Opened() != 1 {
		t.Fatalf("expected Unwrap to open one physical connection, got %d", factory.Opened())
	}
	if err := p.Release(slot); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestCloseWaitsForInFlightReleaseBeforeClosing(t *testing.T) {
	factory := storage.NewMockFactory()
	p, err := pool.New(factory, pool.Options{PoolSize: 1, IdleTimeout: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	phys, err := slot.Phys(t.Context())
	if err != nil {
		t.Fatalf("Phys: %v", err)
	}

	closeDone := make(chan struct{})
	go func() {
		_ = p.Close()
		close(closeDone)
	}()

	// Close must not race ahead of the caller's own Release: the physical
	// connection should still be open while the caller holds the Slot.
	time.Sleep(30 * time.Millisecond)
	select {
	case <-closeDone:
		t.Fatal("Close returned before the held Slot was released")
	default:
	}
	if phys.IsClosed() {
		t.Fatal("physical connection closed before Release, while still in use")
	}

	if err := p.Release(slot); err != nil {
		t.Fatalf("Release: %v", err)
	}

	select {
	case <-closeDone:
	case <-time.After(time.Second):
		t.Fatal("Close never completed after Release")
	}
	if !phys.IsClosed() {
		t.Fatal("expected the physical connection to be closed once Close drained the held Slot")
	}
}

func TestDeadSlotRetryLogsClosedInvalidEvent(t *testing.T) {
	factory := storage.NewMockFactory()
	var mu sync.Mutex
	var messages []string
	p := newTestPool(t, pool.Options{
		PoolSize:           1,
		IdleTimeout:        time.Hour,
		ValidateOnCheckout: true,
		LogFn: func(message string, data map[string]any) {
			mu.Lock()
			defer mu.Unlock()
			messages = append(messages, message)
		},
	}, factory)

	slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	phys, err := slot.Phys(t.Context())
	if err != nil {
		t.Fatalf("Phys: %v", err)
	}
	phys.(*storage.MockConnection).Kill()
	if err := p.Release(slot); err != nil {
		t.Fatalf("Release: %v", err)
	}

	slot2, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire after dead slot: %v", err)
	}
	if err := p.Release(slot2); err != nil {
		t.Fatalf("Release: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, m := range messages {
		if m == "Got a closed/invalid connection - retrying" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a dead-slot log event, got messages: %v", messages)
	}
}

func TestOverflowLogsSlowPathEvent(t *testing.T) {
	var mu sync.Mutex
	var messages []string
	p := newTestPool(t, pool.Options{
		PoolSize:          1,
		IdleTimeout:       time.Hour,
		ConnectionTimeout: 30 * time.Millisecond,
		LogFn: func(message string, data map[string]any) {
			mu.Lock()
			defer mu.Unlock()
			messages = append(messages, message)
		},
	}, nil)

	held, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := held.Phys(t.Context()); err != nil {
		t.Fatalf("Phys: %v", err)
	}

	overflow, err := p.Acquire()
	if err != nil {
		t.Fatalf("expected an overflow connection, got error: %v", err)
	}
	if err := overflow.Close(); err != nil {
		t.Fatalf("overflow Close: %v", err)
	}
	if err := p.Release(held); err != nil {
		t.Fatalf("Release: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, m := range messages {
		if m == "Creating non-reusable connection (slow path)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a slow-path overflow log event, got messages: %v", messages)
	}
}
