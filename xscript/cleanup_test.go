package xscript

import (
	"testing"
	"time"
)

func TestCleanupManagerDestroysPushedContext(t *testing.T) {
	m := NewCleanupManager(4)
	defer m.Close()

	ctx := newTestContext(time.Second)
	ctx.AddNode(NewElement("x"))
	ctx.Expect(1)
	ctx.Result(0, NewInvokeContext())

	m.Push(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		ctx.nodesMu.Lock()
		arenaNil := ctx.arena == nil
		ctx.nodesMu.Unlock()
		if arenaNil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected context to be destroyed (arena cleared) within deadline")
}

func TestCleanupManagerDropsOverCapacityBackPressure(t *testing.T) {
	m := NewCleanupManager(1)
	defer m.Close()

	// Pushing more than capacity should never block or panic; excess
	// entries are destroyed on the caller's goroutine as back-pressure.
	for i := 0; i < 10; i++ {
		m.Push(newTestContext(time.Second))
	}
}

func TestCleanupManagerPushAfterCloseIsNoop(t *testing.T) {
	m := NewCleanupManager(4)
	m.Close()
	// Must not panic or block.
	m.Push(newTestContext(time.Second))
}
