package attempt

import "time"

// submitCoordinator owns the retry policy for final delivery: bounded
// exponential backoff with a cap, a single in-flight attempt, and an early
// retry when connectivity returns.
type submitCoordinator struct {
	base     time.Duration
	cap      time.Duration
	maxTries int

	tries     int
	inFlight  bool
	nextRetry time.Time
	done      bool
}

func newSubmitCoordinator(base, cap time.Duration, maxTries int) *submitCoordinator {
	if base <= 0 {
		base = 2 * time.Second
	}
	if cap <= 0 {
		cap = 30 * time.Second
	}
	if maxTries <= 0 {
		maxTries = 8
	}
	return &submitCoordinator{base: base, cap: cap, maxTries: maxTries}
}

// due reports whether an attempt may be launched now.
func (c *submitCoordinator) due(now time.Time) bool {
	return !c.done && !c.inFlight && !now.Before(c.nextRetry)
}

func (c *submitCoordinator) launched() {
	c.inFlight = true
	c.tries++
}

func (c *submitCoordinator) succeeded() {
	c.inFlight = false
	c.done = true
}

// failed records a transient failure and schedules the next retry. It
// returns false when the retry budget is exhausted.
func (c *submitCoordinator) failed(now time.Time) (retryable bool) {
	c.inFlight = false
	if c.tries >= c.maxTries {
		c.done = true
		return false
	}
	c.nextRetry = now.Add(c.backoff(c.tries))
	return true
}

// abort marks delivery finished without success (terminal rejection).
func (c *submitCoordinator) abort() {
	c.inFlight = false
	c.done = true
}

// retryNow collapses the pending backoff delay, used when the network
// monitor reports reconnection while a submission is pending.
func (c *submitCoordinator) retryNow(now time.Time) {
	if !c.done && !c.inFlight {
		c.nextRetry = now
	}
}

func (c *submitCoordinator) nextDeadline() time.Time {
	if c.done || c.inFlight {
		return time.Time{}
	}
	return c.nextRetry
}

// backoff is base * 2^(n-1), capped.
func (c *submitCoordinator) backoff(n int) time.Duration {
	d := c.base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= c.cap {
			return c.cap
		}
	}
	if d > c.cap {
		d = c.cap
	}
	return d
}
