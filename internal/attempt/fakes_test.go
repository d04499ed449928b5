package attempt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-exam/vigil/internal/model"
)

// ─── fake clock ─────────────────────────────────────────────────────

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

// fakeClock drives the session loop deterministically: After registers a
// waiter that fires when Advance moves the clock past its deadline.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, fakeWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	keep := c.waiters[:0]
	for _, w := range c.waiters {
		if w.at.After(c.now) {
			keep = append(keep, w)
		} else {
			w.ch <- c.now
		}
	}
	c.waiters = keep
}

// ─── fake exam API ──────────────────────────────────────────────────

type fakeAPI struct {
	mu sync.Mutex

	startResult model.StartAttemptResult
	startErr    error

	probeErr   error
	probeCalls int

	savedAnswers []string
	violations   []model.ViolationEvent
	beacons      []model.BeaconPayload

	submitErr         error
	submitResult      model.SubmitResult
	liveSubmitCalls   int
	sealedSubmitCalls int
	sealedReceived    []model.SealedSnapshot

	resumeTicket   model.ResumeTicket
	resumeRequests int
}

func newFakeAPI(attemptID uuid.UUID, remaining, maxViolations int) *fakeAPI {
	return &fakeAPI{
		startResult: model.StartAttemptResult{
			AttemptID: attemptID,
			Exam: model.ExamPayload{
				Title:         "Biology Midterm",
				MaxViolations: maxViolations,
			},
			TimeRemainingSeconds: remaining,
		},
		submitResult: model.SubmitResult{AttemptID: attemptID, Finalized: true, Score: 80},
	}
}

func (a *fakeAPI) StartAttempt(_ context.Context, _ uuid.UUID, _ string, _ Identity) (*model.StartAttemptResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startErr != nil {
		return nil, a.startErr
	}
	res := a.startResult
	return &res, nil
}

func (a *fakeAPI) SaveAnswer(_ context.Context, _ uuid.UUID, questionID string, _ model.ResponsePatch) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.savedAnswers = append(a.savedAnswers, questionID)
	return nil
}

func (a *fakeAPI) LogViolation(_ context.Context, _ uuid.UUID, v model.ViolationEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.violations = append(a.violations, v)
	return nil
}

func (a *fakeAPI) SubmitLive(_ context.Context, attemptID uuid.UUID) (*model.SubmitResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.liveSubmitCalls++
	if a.submitErr != nil {
		return nil, a.submitErr
	}
	res := a.submitResult
	return &res, nil
}

func (a *fakeAPI) SubmitSealed(_ context.Context, snap model.SealedSnapshot) (*model.SubmitResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealedSubmitCalls++
	a.sealedReceived = append(a.sealedReceived, snap)
	if a.submitErr != nil {
		return nil, a.submitErr
	}
	res := a.submitResult
	return &res, nil
}

func (a *fakeAPI) SendBeacon(payload model.BeaconPayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.beacons = append(a.beacons, payload)
}

func (a *fakeAPI) CreateResumeRequest(_ context.Context, _ uuid.UUID, _ string) (*model.ResumeTicket, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resumeRequests++
	t := a.resumeTicket
	return &t, nil
}

func (a *fakeAPI) Probe(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.probeCalls++
	return a.probeErr
}

func (a *fakeAPI) setProbeErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.probeErr = err
}

func (a *fakeAPI) setSubmitErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitErr = err
}

func (a *fakeAPI) probes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.probeCalls
}

func (a *fakeAPI) liveSubmits() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveSubmitCalls
}

func (a *fakeAPI) sealedSubmits() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sealedSubmitCalls
}

// ─── in-memory durable store ────────────────────────────────────────

type memKey struct {
	exam    uuid.UUID
	attempt uuid.UUID
}

type memStore struct {
	mu        sync.Mutex
	responses map[memKey]model.ResponseSnapshot
	timers    map[memKey]TimerCheckpoint
	seals     map[uuid.UUID]model.SealedSnapshot // keyed by exam
}

func newMemStore() *memStore {
	return &memStore{
		responses: map[memKey]model.ResponseSnapshot{},
		timers:    map[memKey]TimerCheckpoint{},
		seals:     map[uuid.UUID]model.SealedSnapshot{},
	}
}

func (m *memStore) SaveResponses(examID, attemptID uuid.UUID, snap model.ResponseSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[memKey{examID, attemptID}] = snap.Clone()
	return nil
}

func (m *memStore) LoadResponses(examID, attemptID uuid.UUID) (*model.ResponseSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.responses[memKey{examID, attemptID}]
	if !ok {
		return nil, nil
	}
	c := snap.Clone()
	return &c, nil
}

func (m *memStore) SaveTimer(examID, attemptID uuid.UUID, cp TimerCheckpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[memKey{examID, attemptID}] = cp
	return nil
}

func (m *memStore) LoadTimer(examID, attemptID uuid.UUID) (*TimerCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.timers[memKey{examID, attemptID}]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (m *memStore) SaveSeal(examID, _ uuid.UUID, snap model.SealedSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seals[examID] = snap
	return nil
}

func (m *memStore) LoadSeal(examID uuid.UUID) (*model.SealedSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.seals[examID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *memStore) DeleteSeal(examID, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seals, examID)
	return nil
}

func (m *memStore) Purge(examID, attemptID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.responses, memKey{examID, attemptID})
	delete(m.timers, memKey{examID, attemptID})
	delete(m.seals, examID)
	return nil
}

func (m *memStore) empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.responses) == 0 && len(m.timers) == 0 && len(m.seals) == 0
}

// ─── in-process broker ──────────────────────────────────────────────

type memBroker struct {
	mu   sync.Mutex
	subs map[uuid.UUID]chan model.ResumeEvent
}

func newMemBroker() *memBroker {
	return &memBroker{subs: map[uuid.UUID]chan model.ResumeEvent{}}
}

func (b *memBroker) Subscribe(_ context.Context, requestID uuid.UUID) (<-chan model.ResumeEvent, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan model.ResumeEvent, 4)
	b.subs[requestID] = ch
	return ch, func() {}, nil
}

func (b *memBroker) Publish(ev model.ResumeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[ev.RequestID]; ok {
		ch <- ev
	}
}

// ─── identity ───────────────────────────────────────────────────────

type staticIdentity struct{ id Identity }

func (s staticIdentity) Identity() Identity { return s.id }

// ─── helpers ────────────────────────────────────────────────────────

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
