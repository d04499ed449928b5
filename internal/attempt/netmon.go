package attempt

import "time"

// netMonitor decides server reachability from periodic probe results,
// independent of any transport online/offline signal. Debounce rule: a
// transition is reported only after two consecutive probes disagree with the
// last reported state, so one dropped probe never seals an exam.
type netMonitor struct {
	interval      time.Duration
	healthy       bool
	disagreements int
	nextProbe     time.Time
	inFlight      bool
	stopped       bool
}

func newNetMonitor(interval time.Duration, now time.Time) *netMonitor {
	return &netMonitor{
		interval:  interval,
		healthy:   true,
		nextProbe: now.Add(interval),
	}
}

// due reports whether a probe should be launched.
func (m *netMonitor) due(now time.Time) bool {
	return !m.stopped && !m.inFlight && !now.Before(m.nextProbe)
}

func (m *netMonitor) launched() { m.inFlight = true }

// result records a probe outcome. It returns whether the reported health
// transitioned, and the current reported health.
func (m *netMonitor) result(ok bool, now time.Time) (transitioned bool, healthy bool) {
	m.inFlight = false
	m.nextProbe = now.Add(m.interval)

	if ok == m.healthy {
		m.disagreements = 0
		return false, m.healthy
	}
	m.disagreements++
	if m.disagreements < 2 {
		return false, m.healthy
	}
	m.healthy = ok
	m.disagreements = 0
	return true, m.healthy
}

func (m *netMonitor) nextDeadline() time.Time {
	if m.stopped || m.inFlight {
		return time.Time{}
	}
	return m.nextProbe
}

func (m *netMonitor) stop() { m.stopped = true }
