package attempt

import (
	"testing"
	"time"
)

func TestNetMonitorDebouncesSingleFailure(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m := newNetMonitor(5*time.Second, t0)

	if tr, _ := m.result(false, t0.Add(5*time.Second)); tr {
		t.Fatal("one failed probe must not transition")
	}
	// Agreement resets the streak.
	if tr, _ := m.result(true, t0.Add(10*time.Second)); tr {
		t.Fatal("agreeing probe must not transition")
	}
	if tr, _ := m.result(false, t0.Add(15*time.Second)); tr {
		t.Fatal("streak should have reset")
	}
	tr, healthy := m.result(false, t0.Add(20*time.Second))
	if !tr || healthy {
		t.Fatalf("second consecutive failure: transitioned=%v healthy=%v", tr, healthy)
	}
}

func TestNetMonitorRecoveryNeedsTwoSuccesses(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m := newNetMonitor(5*time.Second, t0)
	m.result(false, t0)
	m.result(false, t0.Add(5*time.Second))
	if m.healthy {
		t.Fatal("expected unhealthy")
	}

	if tr, _ := m.result(true, t0.Add(10*time.Second)); tr {
		t.Fatal("one success must not report recovery")
	}
	tr, healthy := m.result(true, t0.Add(15*time.Second))
	if !tr || !healthy {
		t.Fatalf("second success: transitioned=%v healthy=%v", tr, healthy)
	}
}

func TestNetMonitorScheduling(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m := newNetMonitor(5*time.Second, t0)

	if m.due(t0) {
		t.Fatal("due before the first interval")
	}
	if !m.due(t0.Add(5 * time.Second)) {
		t.Fatal("not due at the interval")
	}
	m.launched()
	if m.due(t0.Add(6 * time.Second)) {
		t.Fatal("due while a probe is in flight")
	}
	if !m.nextDeadline().IsZero() {
		t.Fatal("in-flight probe should suppress the deadline")
	}
	m.result(true, t0.Add(6*time.Second))
	if !m.nextDeadline().Equal(t0.Add(11 * time.Second)) {
		t.Fatalf("next probe = %v, want t0+11s", m.nextDeadline())
	}
	m.stop()
	if m.due(t0.Add(time.Hour)) {
		t.Fatal("stopped monitor must not be due")
	}
}
