package attempt

import "time"

const (
	tickInterval       = 250 * time.Millisecond
	lowTimeThreshold   = 5 * time.Minute
	checkpointInterval = 30 * time.Second
)

// wallTimer tracks remaining time against a fixed end timestamp. Remaining
// time is always recomputed from the end timestamp, never by accumulating
// tick deltas, so missed ticks (backgrounded process, suspended VM) cause no
// drift.
type wallTimer struct {
	endAt          time.Time
	nextTick       time.Time
	nextCheckpoint time.Time
	running        bool
	lowWarned      bool
	expired        bool
}

// timerEvents is what one advance produced. expired fires at most once for
// the timer's lifetime.
type timerEvents struct {
	lowTime    bool
	expired    bool
	checkpoint bool
}

func (t *wallTimer) start(now time.Time, remaining time.Duration) {
	t.endAt = now.Add(remaining)
	t.nextTick = now.Add(tickInterval)
	t.nextCheckpoint = now.Add(checkpointInterval)
	t.running = true
	t.expired = false
}

func (t *wallTimer) stop() {
	t.running = false
}

// estimate sets the end timestamp without running the timer: remaining()
// then reports a local reconstruction while the session waits for an
// authoritative value. A later start replaces it.
func (t *wallTimer) estimate(now time.Time, remaining time.Duration) {
	t.endAt = now.Add(remaining)
}

func (t *wallTimer) remaining(now time.Time) time.Duration {
	if t.endAt.IsZero() {
		return 0
	}
	r := t.endAt.Sub(now)
	if r < 0 {
		r = 0
	}
	return r
}

// advance processes any due tick and checkpoint. The next tick is anchored
// to now, not to the previous tick, so a long pause yields one catch-up
// evaluation rather than a burst.
func (t *wallTimer) advance(now time.Time) timerEvents {
	var ev timerEvents
	if !t.running {
		return ev
	}

	if !now.Before(t.nextTick) {
		t.nextTick = now.Add(tickInterval)
		r := t.remaining(now)
		if !t.lowWarned && r > 0 && r <= lowTimeThreshold {
			t.lowWarned = true
			ev.lowTime = true
		}
		if r == 0 && !t.expired {
			t.expired = true
			t.running = false
			ev.expired = true
		}
	}

	if t.running && !now.Before(t.nextCheckpoint) {
		t.nextCheckpoint = now.Add(checkpointInterval)
		ev.checkpoint = true
	}
	return ev
}

// nextDeadline returns the earliest wake-up the timer needs, or zero if
// stopped.
func (t *wallTimer) nextDeadline() time.Time {
	if !t.running {
		return time.Time{}
	}
	if t.nextCheckpoint.Before(t.nextTick) {
		return t.nextCheckpoint
	}
	return t.nextTick
}

func (t *wallTimer) checkpoint(now time.Time) TimerCheckpoint {
	return TimerCheckpoint{
		RemainingSeconds: int(t.remaining(now) / time.Second),
		SavedAt:          now,
	}
}

// reconstructRemaining rebuilds the remaining time from a persisted
// checkpoint: the time left when saved, minus the wall-clock time elapsed
// since.
func reconstructRemaining(cp TimerCheckpoint, now time.Time) time.Duration {
	r := time.Duration(cp.RemainingSeconds)*time.Second - now.Sub(cp.SavedAt)
	if r < 0 {
		r = 0
	}
	return r
}
