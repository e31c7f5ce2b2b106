package model

import (
	"testing"
	"time"
)

func TestApplySuccessSetsHealthy(t *testing.T) {
	rec := NewProxyRecord("1.2.3.4:1080")
	if rec.Status != StatusUntested {
		t.Fatalf("new record status = %v, want untested", rec.Status)
	}

	rec.ApplySuccess(50*time.Millisecond, time.Second)
	if rec.Status != StatusHealthy {
		t.Errorf("status = %v, want healthy", rec.Status)
	}
	if rec.Latency != 50*time.Millisecond {
		t.Errorf("latency = %v, want 50ms", rec.Latency)
	}
	if rec.Failures != 0 {
		t.Errorf("failures = %d, want 0", rec.Failures)
	}
}

func TestApplySuccessOverThresholdSetsDegraded(t *testing.T) {
	rec := NewProxyRecord("1.2.3.4:1080")
	rec.ApplySuccess(2*time.Second, time.Second)
	if rec.Status != StatusDegraded {
		t.Errorf("status = %v, want degraded", rec.Status)
	}

	// A faster probe flips it back to healthy.
	rec.ApplySuccess(100*time.Millisecond, time.Second)
	if rec.Status != StatusHealthy {
		t.Errorf("status after recovery = %v, want healthy", rec.Status)
	}
}

func TestApplyFailureReachesDeadAtLimit(t *testing.T) {
	rec := NewProxyRecord("1.2.3.4:1080")

	for i := 1; i <= 2; i++ {
		if dead := rec.ApplyFailure(3); dead {
			t.Fatalf("record dead after %d failures, limit is 3", i)
		}
	}
	if !rec.Alive() {
		t.Fatal("record not alive before reaching the limit")
	}
	if dead := rec.ApplyFailure(3); !dead {
		t.Fatal("record not dead after reaching the limit")
	}
	if rec.Status != StatusDead {
		t.Errorf("status = %v, want dead", rec.Status)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	rec := NewProxyRecord("1.2.3.4:1080")
	rec.ApplyFailure(3)
	rec.ApplyFailure(3)
	rec.ApplySuccess(10*time.Millisecond, time.Second)
	if rec.Failures != 0 {
		t.Errorf("failures = %d after success, want 0", rec.Failures)
	}

	// The count starts over; two more failures must not kill it.
	rec.ApplyFailure(3)
	if dead := rec.ApplyFailure(3); dead {
		t.Error("record dead after 2 failures since last success, limit is 3")
	}
}
