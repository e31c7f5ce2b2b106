package proxypool

import (
	"errors"
	"testing"
	"time"
)

// sweptPool builds a pool whose ordered view is [fast, slow] after one
// sweep.
func sweptPool(t *testing.T, pr *fakeProber) *Manager {
	t.Helper()
	pr.setLatency("10.0.0.2:1080", 20*time.Millisecond) // fast
	pr.setLatency("10.0.0.1:1080", 50*time.Millisecond) // slow
	pool := newTestPool(t, pr)
	pool.Ingest([]string{"10.0.0.1:1080", "10.0.0.2:1080"})
	pool.Sweep()
	return pool
}

func TestPromoteBestSelectsFastestProxy(t *testing.T) {
	pool := sweptPool(t, newFakeProber())
	sel := NewSelector(pool, false, time.Hour)

	rec, ok := sel.PromoteBest()
	if !ok {
		t.Fatal("promote on a populated pool returned no selection")
	}
	if rec.Address != "10.0.0.2:1080" {
		t.Errorf("promoted %s, want 10.0.0.2:1080", rec.Address)
	}
}

func TestPromoteBestOnEmptyPoolClearsSelection(t *testing.T) {
	pool := newTestPool(t, newFakeProber())
	sel := NewSelector(pool, false, time.Hour)

	if _, ok := sel.PromoteBest(); ok {
		t.Error("promote on an empty pool returned a selection")
	}
	if _, ok := sel.Current(); ok {
		t.Error("current selection present on an empty pool")
	}
}

func TestNextWrapsAroundOrderedView(t *testing.T) {
	pool := sweptPool(t, newFakeProber())
	sel := NewSelector(pool, false, time.Hour)
	sel.PromoteBest()

	rec, _ := sel.Next()
	if rec.Address != "10.0.0.1:1080" {
		t.Errorf("first next = %s, want 10.0.0.1:1080", rec.Address)
	}
	rec, _ = sel.Next()
	if rec.Address != "10.0.0.2:1080" {
		t.Errorf("wrap-around next = %s, want 10.0.0.2:1080", rec.Address)
	}
}

func TestNextWithoutSelectionActsLikePromote(t *testing.T) {
	pool := sweptPool(t, newFakeProber())
	sel := NewSelector(pool, false, time.Hour)

	rec, ok := sel.Next()
	if !ok || rec.Address != "10.0.0.2:1080" {
		t.Errorf("next from no selection = %s (%v), want 10.0.0.2:1080", rec.Address, ok)
	}
}

func TestGotoSelectsOneBasedPosition(t *testing.T) {
	pool := sweptPool(t, newFakeProber())
	sel := NewSelector(pool, false, time.Hour)

	rec, err := sel.Goto(2)
	if err != nil {
		t.Fatalf("goto 2 failed: %v", err)
	}
	if rec.Address != "10.0.0.1:1080" {
		t.Errorf("goto 2 = %s, want 10.0.0.1:1080", rec.Address)
	}
}

func TestGotoOutOfRangeLeavesSelectionUnchanged(t *testing.T) {
	pool := sweptPool(t, newFakeProber())
	sel := NewSelector(pool, false, time.Hour)
	sel.PromoteBest()

	if _, err := sel.Goto(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("goto 0 error = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := sel.Goto(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("goto 3 error = %v, want ErrIndexOutOfRange", err)
	}
	rec, ok := sel.Current()
	if !ok || rec.Address != "10.0.0.2:1080" {
		t.Errorf("selection after failed goto = %s (%v), want 10.0.0.2:1080", rec.Address, ok)
	}
}

// An evicted selection must not survive the sweep that removed it: the
// selector repoints to the best remaining proxy.
func TestEvictionTriggersReselection(t *testing.T) {
	pr := newFakeProber()
	pool := sweptPool(t, pr)
	sel := NewSelector(pool, false, time.Hour)
	sel.PromoteBest() // 10.0.0.2:1080, the faster one

	pr.setFailing("10.0.0.2:1080")
	for i := 0; i < 3; i++ {
		pool.Sweep()
	}

	rec, ok := sel.Current()
	if !ok {
		t.Fatal("no selection after eviction despite a surviving proxy")
	}
	if rec.Address != "10.0.0.1:1080" {
		t.Errorf("selection after eviction = %s, want 10.0.0.1:1080", rec.Address)
	}
}

func TestEvictionWithEmptyPoolClearsSelection(t *testing.T) {
	cfg := testConfig()
	cfg.RetryTimes = 1
	pr := newFakeProber()
	pr.setLatency("10.0.0.1:1080", 30*time.Millisecond)
	pool := NewManager(cfg, &memStorage{}, pr)
	pool.Ingest([]string{"10.0.0.1:1080"})
	pool.Sweep()

	sel := NewSelector(pool, false, time.Hour)
	sel.PromoteBest()

	pr.setFailing("10.0.0.1:1080")
	pool.Sweep()

	if _, ok := sel.Current(); ok {
		t.Error("selection survived the eviction of the last proxy")
	}
}

func TestCurrentIgnoresStaleAddress(t *testing.T) {
	pool := sweptPool(t, newFakeProber())
	sel := NewSelector(pool, false, time.Hour)
	sel.PromoteBest()

	// Remove the selected record behind the selector's back.
	pool.mu.Lock()
	delete(pool.records, "10.0.0.2:1080")
	pool.recomputeViewLocked()
	pool.mu.Unlock()

	if _, ok := sel.Current(); ok {
		t.Error("current returned a record no longer in the pool")
	}
}

func TestRotateIfDueRespectsInterval(t *testing.T) {
	pool := sweptPool(t, newFakeProber())
	sel := NewSelector(pool, true, time.Hour)
	sel.PromoteBest()

	if _, rotated := sel.RotateIfDue(time.Now()); rotated {
		t.Error("rotation fired before the interval elapsed")
	}

	rec, rotated := sel.RotateIfDue(time.Now().Add(2 * time.Hour))
	if !rotated {
		t.Fatal("rotation did not fire after the interval elapsed")
	}
	if rec.Address != "10.0.0.1:1080" {
		t.Errorf("rotation selected %s, want 10.0.0.1:1080", rec.Address)
	}
}

func TestRotateIfDueDisabledNeverRotates(t *testing.T) {
	pool := sweptPool(t, newFakeProber())
	sel := NewSelector(pool, false, time.Millisecond)
	sel.PromoteBest()

	if _, rotated := sel.RotateIfDue(time.Now().Add(time.Hour)); rotated {
		t.Error("rotation fired with auto-switch disabled")
	}
}

func TestRotateIfDueOnEmptyPoolReportsNoRotation(t *testing.T) {
	pool := newTestPool(t, newFakeProber())
	sel := NewSelector(pool, true, time.Millisecond)

	if _, rotated := sel.RotateIfDue(time.Now().Add(time.Hour)); rotated {
		t.Error("rotation reported on an empty pool")
	}
}
