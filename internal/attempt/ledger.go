package attempt

import (
	"time"

	"github.com/vigil-exam/vigil/internal/model"
)

// violationLedger is a monotonically increasing violation counter with its
// event log. It is never decremented and never de-duplicates: two identical
// events in the same detection window both count. The count equals the log
// length by construction.
type violationLedger struct {
	limit  int
	events []model.ViolationEvent
}

func newViolationLedger(limit int) *violationLedger {
	return &violationLedger{limit: limit}
}

// record appends one event and returns the new count.
func (l *violationLedger) record(vt model.ViolationType, now time.Time) int {
	l.events = append(l.events, model.ViolationEvent{Type: vt, At: now})
	return len(l.events)
}

func (l *violationLedger) count() int { return len(l.events) }

// exceeded reports whether the configured threshold has been reached. A
// limit of zero disables threshold enforcement.
func (l *violationLedger) exceeded() bool {
	return l.limit > 0 && len(l.events) >= l.limit
}

// remainingBefore returns how many further violations are tolerated before
// the threshold trips.
func (l *violationLedger) remainingBefore() int {
	if l.limit <= 0 {
		return -1
	}
	r := l.limit - len(l.events)
	if r < 0 {
		r = 0
	}
	return r
}

// restore seeds the counter from a recovered snapshot. Only the count
// survives a reload; per-event timestamps live on the server.
func (l *violationLedger) restore(count int) {
	l.events = make([]model.ViolationEvent, count)
}

func (l *violationLedger) log() []model.ViolationEvent {
	out := make([]model.ViolationEvent, len(l.events))
	copy(out, l.events)
	return out
}
