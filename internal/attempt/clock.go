package attempt

import "time"

// Clock abstracts wall-clock time so the session loop can be driven
// deterministically in tests. After must behave like time.After.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns a Clock backed by the real wall clock.
func SystemClock() Clock { return systemClock{} }
