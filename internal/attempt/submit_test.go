package attempt

import (
	"testing"
	"time"
)

func TestSubmitBackoffDoublesToCap(t *testing.T) {
	c := newSubmitCoordinator(2*time.Second, 30*time.Second, 8)
	want := []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i, w := range want {
		if got := c.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestSubmitRetrySchedule(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := newSubmitCoordinator(2*time.Second, 30*time.Second, 8)

	if !c.due(t0) {
		t.Fatal("fresh coordinator should be due")
	}
	c.launched()
	if c.due(t0) {
		t.Fatal("due while in flight")
	}
	if !c.failed(t0) {
		t.Fatal("first failure should be retryable")
	}
	if c.due(t0.Add(time.Second)) {
		t.Fatal("due inside the backoff window")
	}
	if !c.due(t0.Add(2 * time.Second)) {
		t.Fatal("not due after the backoff elapsed")
	}
}

func TestSubmitRetryBudgetExhaustion(t *testing.T) {
	now := time.Now()
	c := newSubmitCoordinator(time.Second, 10*time.Second, 3)
	for i := 0; i < 2; i++ {
		c.launched()
		if !c.failed(now) {
			t.Fatalf("try %d should still be retryable", i+1)
		}
	}
	c.launched()
	if c.failed(now) {
		t.Fatal("budget spent, failure must not be retryable")
	}
	if !c.done {
		t.Fatal("exhausted coordinator should be done")
	}
}

func TestSubmitRetryNowCollapsesBackoff(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := newSubmitCoordinator(30*time.Second, 30*time.Second, 8)
	c.launched()
	c.failed(t0)
	if c.due(t0.Add(time.Second)) {
		t.Fatal("due before retryNow")
	}
	c.retryNow(t0.Add(time.Second))
	if !c.due(t0.Add(time.Second)) {
		t.Fatal("retryNow should make the coordinator due")
	}
}

func TestSubmitSuccessAndAbortStopScheduling(t *testing.T) {
	c := newSubmitCoordinator(time.Second, time.Second, 8)
	c.launched()
	c.succeeded()
	if c.due(time.Now().Add(time.Hour)) {
		t.Fatal("done coordinator must not be due")
	}
	if !c.nextDeadline().IsZero() {
		t.Fatal("done coordinator must have no deadline")
	}

	c2 := newSubmitCoordinator(time.Second, time.Second, 8)
	c2.launched()
	c2.abort()
	if c2.due(time.Now().Add(time.Hour)) {
		t.Fatal("aborted coordinator must not be due")
	}
}
