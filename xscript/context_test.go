package xscript

import (
	"testing"
	"time"
)

func newTestContext(budget time.Duration) *Context {
	return NewContext(&Script{}, &Request{}, budget)
}

func TestContextExpectZeroResultsDoesNotBlock(t *testing.T) {
	ctx := newTestContext(time.Second)
	ctx.Expect(0)
	results := ctx.Wait(100 * time.Millisecond)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestContextBarrierWaitsForAllResults(t *testing.T) {
	ctx := newTestContext(time.Second)
	ctx.Expect(3)

	for i := 0; i < 3; i++ {
		go func(i int) {
			ic := NewInvokeContext()
			ctx.Result(i, ic)
		}(i)
	}

	results := ctx.Wait(time.Second)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, ic := range results {
		if ic == nil {
			t.Errorf("slot %d unfilled", i)
		}
	}
}

func TestContextWaitTimesOutWithUnfilledSlots(t *testing.T) {
	ctx := newTestContext(time.Second)
	ctx.Expect(2)
	ctx.Result(0, NewInvokeContext())
	// slot 1 never filled

	results := ctx.Wait(20 * time.Millisecond)
	if results[0] == nil {
		t.Error("expected slot 0 filled")
	}
	if results[1] != nil {
		t.Error("expected slot 1 to remain nil on timeout")
	}
}

func TestContextStopBlocksIsMonotonic(t *testing.T) {
	ctx := newTestContext(time.Second)
	if ctx.Stopped() {
		t.Fatal("new context should not be stopped")
	}
	ctx.StopBlocks()
	if !ctx.Stopped() {
		t.Fatal("expected Stopped() true after StopBlocks")
	}
}

func TestContextParamRoundTrip(t *testing.T) {
	ctx := newTestContext(time.Second)
	if _, ok := ctx.Param("missing"); ok {
		t.Error("expected missing param to report ok=false")
	}
	ctx.SetParam("dont-use-remote-call", true)
	v, ok := ctx.Param("dont-use-remote-call")
	if !ok || v != true {
		t.Errorf("expected true, got %v ok=%v", v, ok)
	}
}

func TestContextDeadlineAndEffectiveTimeout(t *testing.T) {
	ctx := newTestContext(50 * time.Millisecond)
	remaining := ctx.Deadline()
	if remaining <= 0 || remaining > 50*time.Millisecond {
		t.Errorf("unexpected remaining deadline: %v", remaining)
	}

	// block timeout longer than the budget clamps to the budget.
	if got := ctx.EffectiveTimeout(time.Hour); got > 50*time.Millisecond {
		t.Errorf("expected clamped timeout, got %v", got)
	}
	// block timeout shorter than the budget wins.
	if got := ctx.EffectiveTimeout(time.Millisecond); got > time.Millisecond {
		t.Errorf("expected block timeout to win, got %v", got)
	}
}

func TestContextDeadlineNeverNegative(t *testing.T) {
	ctx := newTestContext(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if d := ctx.Deadline(); d != 0 {
		t.Errorf("expected clamped-to-zero deadline, got %v", d)
	}
}

func TestContextStopperReleaseStopsAndPushesToCleanup(t *testing.T) {
	ctx := newTestContext(time.Second)
	ctx.AddNode(NewElement("x"))
	cleanup := NewCleanupManager(4)
	defer cleanup.Close()

	stopper := NewContextStopper(ctx, cleanup)
	stopper.Release()

	if !ctx.Stopped() {
		t.Error("expected context stopped after Release")
	}

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
	t.Fatal("expected Release to push the context to cleanup (arena cleared) within deadline")
}
