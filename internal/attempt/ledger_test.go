package attempt

import (
	"testing"
	"time"

	"github.com/vigil-exam/vigil/internal/model"
)

func TestLedgerCountsEveryEvent(t *testing.T) {
	now := time.Now()
	l := newViolationLedger(3)

	if got := l.record(model.ViolationTabHidden, now); got != 1 {
		t.Fatalf("count after first = %d, want 1", got)
	}
	// Identical events are not de-duplicated.
	if got := l.record(model.ViolationTabHidden, now); got != 2 {
		t.Fatalf("count after duplicate = %d, want 2", got)
	}
	if l.exceeded() {
		t.Fatal("exceeded below limit")
	}
	l.record(model.ViolationDevtools, now)
	if !l.exceeded() {
		t.Fatal("not exceeded at limit")
	}
	if got := len(l.log()); got != 3 {
		t.Fatalf("log length = %d, want 3", got)
	}
}

func TestLedgerZeroLimitDisablesThreshold(t *testing.T) {
	l := newViolationLedger(0)
	for i := 0; i < 50; i++ {
		l.record(model.ViolationWindowBlur, time.Now())
	}
	if l.exceeded() {
		t.Fatal("zero limit must never exceed")
	}
	if got := l.remainingBefore(); got != -1 {
		t.Fatalf("remainingBefore with no limit = %d, want -1", got)
	}
}

func TestLedgerRemainingBefore(t *testing.T) {
	l := newViolationLedger(3)
	if got := l.remainingBefore(); got != 3 {
		t.Fatalf("remaining = %d, want 3", got)
	}
	l.record(model.ViolationCopyAttempt, time.Now())
	if got := l.remainingBefore(); got != 2 {
		t.Fatalf("remaining = %d, want 2", got)
	}
}

func TestLedgerRestoreSeedsCount(t *testing.T) {
	l := newViolationLedger(5)
	l.restore(4)
	if got := l.count(); got != 4 {
		t.Fatalf("restored count = %d, want 4", got)
	}
	l.record(model.ViolationFullscreenExit, time.Now())
	if !l.exceeded() {
		t.Fatal("restored count must feed the threshold")
	}
}
