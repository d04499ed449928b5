package attempt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil-exam/vigil/internal/model"
)

var errNetDown = errors.New("connection refused")

// extra fakeAPI accessors used only by session tests
func (a *fakeAPI) savedAnswerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.savedAnswers)
}

func (a *fakeAPI) violationCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.violations)
}

func (a *fakeAPI) violationTypes() []model.ViolationType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.ViolationType, len(a.violations))
	for i, v := range a.violations {
		out[i] = v.Type
	}
	return out
}

func (a *fakeAPI) beaconCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.beacons)
}

func (a *fakeAPI) firstBeacon() model.BeaconPayload {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.beacons[0]
}

func (a *fakeAPI) resumeRequestCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resumeRequests
}

func (a *fakeAPI) firstSealed() model.SealedSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sealedReceived[0]
}

type fixture struct {
	clk       *fakeClock
	api       *fakeAPI
	store     *memStore
	broker    *memBroker
	examID    uuid.UUID
	attemptID uuid.UUID
	sess      *Session
}

func newFixture(remaining, maxViolations int, mutate func(*Config)) *fixture {
	f := &fixture{
		clk:       newFakeClock(),
		store:     newMemStore(),
		broker:    newMemBroker(),
		examID:    uuid.New(),
		attemptID: uuid.New(),
	}
	f.api = newFakeAPI(f.attemptID, remaining, maxViolations)
	cfg := Config{
		API:      f.api,
		Store:    f.store,
		Broker:   f.broker,
		Identity: staticIdentity{Identity{Kind: model.SubjectKindStudent, Token: "token", DisplayName: "Raka"}},
		Clock:    f.clk,
		Log:      zerolog.Nop(),
		ExamID:   f.examID,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.sess = New(cfg)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.sess.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
}

// advanceUntil steps the fake clock until cond holds, letting the loop and
// its async completions catch up between steps.
func (f *fixture) advanceUntil(t *testing.T, step time.Duration, maxSteps int, what string, cond func() bool) {
	t.Helper()
	for i := 0; i < maxSteps; i++ {
		if cond() {
			return
		}
		f.clk.Advance(step)
		time.Sleep(2 * time.Millisecond)
	}
	waitUntil(t, what, cond)
}

func (f *fixture) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-f.sess.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session loop did not stop")
	}
}

func answer(opt string) model.ResponsePatch {
	return model.ResponsePatch{SelectedOptionID: strPtr(opt)}
}

func TestSessionStartsActiveAndMergesLocalResponses(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.api.startResult.ExistingResponses = map[string]model.ResponseEntry{
		"q1": {SelectedOptionID: "server"},
		"q2": {TextResponse: "server only"},
	}
	f.store.SaveResponses(f.examID, f.attemptID, model.ResponseSnapshot{
		Responses:   map[string]model.ResponseEntry{"q1": {SelectedOptionID: "local"}},
		CurrentPage: 2,
	})
	f.start(t)

	if got := f.sess.State(); got != StateActive {
		t.Fatalf("state = %s, want ACTIVE", got)
	}
	if got := f.sess.Remaining(); got != 600*time.Second {
		t.Fatalf("remaining = %v, want 10m", got)
	}
	if f.sess.AttemptID() != f.attemptID {
		t.Fatal("attempt ID not adopted from server")
	}

	snap := f.sess.Responses()
	if got := snap.Responses["q1"].SelectedOptionID; got != "local" {
		t.Fatalf("q1 = %q, local copy must win over server", got)
	}
	if got := snap.Responses["q2"].TextResponse; got != "server only" {
		t.Fatalf("q2 = %q, server-only answer lost", got)
	}
	if snap.CurrentPage != 2 {
		t.Fatalf("page = %d, want 2", snap.CurrentPage)
	}
}

func TestSessionResponseWritePath(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.start(t)

	if err := f.sess.SetResponse("q1", answer("opt-b")); err != nil {
		t.Fatalf("set response: %v", err)
	}
	if err := f.sess.Navigate(3); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	// Durable save is synchronous with the mutation.
	local, err := f.store.LoadResponses(f.examID, f.attemptID)
	if err != nil || local == nil {
		t.Fatalf("local responses = %v, %v", local, err)
	}
	if local.Responses["q1"].SelectedOptionID != "opt-b" || local.CurrentPage != 3 {
		t.Fatalf("persisted snapshot = %+v", local)
	}

	// Server sync is best-effort async.
	waitUntil(t, "incremental save", func() bool { return f.api.savedAnswerCount() == 1 })
}

func TestSessionManualSubmit(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.start(t)
	f.sess.SetResponse("q1", answer("a"))

	if err := f.sess.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitUntil(t, "submitted", func() bool { return f.sess.State() == StateSubmitted })

	if got := f.api.liveSubmits(); got != 1 {
		t.Fatalf("live submits = %d, want 1", got)
	}
	res := f.sess.Result()
	if res == nil || !res.Finalized {
		t.Fatalf("result = %+v", res)
	}
	if !f.store.empty() {
		t.Fatal("local storage not purged after submission")
	}

	// Everything after finalization is rejected or dropped.
	if err := f.sess.SetResponse("q2", answer("b")); !errors.Is(err, ErrNotActive) {
		t.Fatalf("post-submit set = %v, want ErrNotActive", err)
	}
	if err := f.sess.Submit(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("double submit = %v, want ErrNotActive", err)
	}
}

func TestSessionTimerExpirySubmitsLiveWhenHealthy(t *testing.T) {
	f := newFixture(10, 3, nil)
	f.start(t)
	f.sess.SetResponse("q1", answer("a"))

	f.advanceUntil(t, time.Second, 30, "submitted on expiry", func() bool {
		return f.sess.State() == StateSubmitted
	})
	if got := f.api.liveSubmits(); got != 1 {
		t.Fatalf("live submits = %d, want 1", got)
	}
	if got := f.api.sealedSubmits(); got != 0 {
		t.Fatalf("sealed submits = %d, want 0", got)
	}
}

func TestSessionLowTimeWarningFiresOnce(t *testing.T) {
	var got []time.Duration
	done := make(chan time.Duration, 4)

	f := newFixture(330, 3, func(cfg *Config) {
		cfg.Hooks.OnLowTime = func(d time.Duration) { done <- d }
	})
	f.start(t)

	f.advanceUntil(t, 5*time.Second, 30, "low-time warning", func() bool {
		select {
		case d := <-done:
			got = append(got, d)
		default:
		}
		return len(got) > 0
	})
	if got[0] > 5*time.Minute {
		t.Fatalf("warned with %v remaining", got[0])
	}

	// More ticks under the threshold must not warn again.
	f.clk.Advance(30 * time.Second)
	time.Sleep(20 * time.Millisecond)
	select {
	case d := <-done:
		t.Fatalf("second low-time warning: %v", d)
	default:
	}
}

func TestSessionTimerCheckpointPersisted(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.start(t)

	cp, _ := f.store.LoadTimer(f.examID, f.attemptID)
	if cp == nil || cp.RemainingSeconds != 600 {
		t.Fatalf("initial checkpoint = %+v", cp)
	}

	f.advanceUntil(t, time.Second, 45, "refreshed checkpoint", func() bool {
		cp, _ := f.store.LoadTimer(f.examID, f.attemptID)
		return cp != nil && cp.RemainingSeconds < 600
	})
}

func TestSessionViolationThresholdForcesSubmission(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.start(t)

	f.sess.RecordViolation(model.ViolationTabHidden)
	f.sess.AcknowledgeWarning()
	f.sess.RecordViolation(model.ViolationWindowBlur)
	f.sess.AcknowledgeWarning()
	if got := f.sess.Violations(); got != 2 {
		t.Fatalf("violations = %d, want 2", got)
	}

	f.sess.RecordViolation(model.ViolationDevtools)
	waitUntil(t, "forced submission", func() bool { return f.sess.State() == StateSubmitted })

	// A fourth event after the forced finish is dropped.
	f.sess.RecordViolation(model.ViolationCopyAttempt)
	if got := f.sess.Violations(); got != 3 {
		t.Fatalf("violations = %d, want 3", got)
	}
	if got := f.api.liveSubmits(); got != 1 {
		t.Fatalf("live submits = %d, want exactly 1", got)
	}
	if err := f.sess.Err(); err != nil {
		t.Fatalf("err = %v, delivered session must not report failure", err)
	}
	if !errors.Is(f.sess.Cause(), ErrViolationLimit) {
		t.Fatalf("cause = %v, want ErrViolationLimit", f.sess.Cause())
	}
	waitUntil(t, "violations reported", func() bool { return f.api.violationCount() == 3 })
}

func TestSessionUnacknowledgedWarningCountsAsViolation(t *testing.T) {
	f := newFixture(600, 2, nil)
	f.start(t)

	f.sess.RecordViolation(model.ViolationFullscreenExit)
	if got := f.sess.Violations(); got != 1 {
		t.Fatalf("violations = %d, want 1", got)
	}

	// Grace elapses with no acknowledgment.
	f.advanceUntil(t, time.Second, 20, "warning timeout finish", func() bool {
		return f.sess.State() == StateSubmitted
	})
	if got := f.sess.Violations(); got != 2 {
		t.Fatalf("violations = %d, want 2", got)
	}
	waitUntil(t, "timeout violation reported", func() bool {
		for _, vt := range f.api.violationTypes() {
			if vt == model.ViolationWarningTimeout {
				return true
			}
		}
		return false
	})
}

func TestSessionNetworkLossSealsThenDeliversOnRecovery(t *testing.T) {
	f := newFixture(600, 5, nil)
	f.start(t)
	f.sess.SetResponse("q1", answer("a"))
	f.sess.SetResponse("q2", answer("b"))
	f.sess.SetResponse("q3", model.ResponsePatch{TextResponse: strPtr("essay"), Flagged: boolPtr(true)})

	f.api.setProbeErr(errNetDown)
	f.advanceUntil(t, time.Second, 90, "sealed on network loss", func() bool {
		return f.sess.State() == StateSealed
	})

	// Hard cutover: no writes past the seal.
	if err := f.sess.SetResponse("q4", answer("late")); !errors.Is(err, ErrNotActive) {
		t.Fatalf("post-seal set = %v, want ErrNotActive", err)
	}

	sealed, _ := f.store.LoadSeal(f.examID)
	if sealed == nil {
		t.Fatal("no durable seal")
	}
	if sealed.SealReason != model.SealReasonNetworkLoss {
		t.Fatalf("seal reason = %s", sealed.SealReason)
	}
	if len(sealed.Responses) != 3 {
		t.Fatalf("sealed responses = %d, want 3", len(sealed.Responses))
	}
	if err := sealed.Verify(); err != nil {
		t.Fatalf("durable seal verify: %v", err)
	}
	if got := f.api.sealedSubmits(); got != 0 {
		t.Fatalf("submitted while unreachable: %d", got)
	}

	// Connectivity returns; delivery happens without further input.
	f.api.setProbeErr(nil)
	f.advanceUntil(t, time.Second, 90, "sealed delivery", func() bool {
		return f.sess.State() == StateSubmitted
	})

	if got := f.api.sealedSubmits(); got != 1 {
		t.Fatalf("sealed submits = %d, want 1", got)
	}
	delivered := f.api.firstSealed()
	if delivered.SealReason != model.SealReasonNetworkLoss || len(delivered.Responses) != 3 {
		t.Fatalf("delivered snapshot = %+v", delivered)
	}
	if err := delivered.Verify(); err != nil {
		t.Fatalf("delivered snapshot verify: %v", err)
	}
	if delivered.Responses["q3"].TextResponse != "essay" {
		t.Fatal("sealed content lost an answer")
	}
	if !f.store.empty() {
		t.Fatal("local storage not purged after delivery")
	}
}

func TestSessionSubmissionRetriesTransientFailure(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.start(t)

	f.api.setSubmitErr(errNetDown)
	if err := f.sess.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitUntil(t, "first try", func() bool { return f.api.liveSubmits() == 1 })
	if got := f.sess.State(); got != StateSubmitting {
		t.Fatalf("state = %s, want SUBMITTING", got)
	}

	f.api.setSubmitErr(nil)
	f.advanceUntil(t, time.Second, 60, "retry success", func() bool {
		return f.sess.State() == StateSubmitted
	})
	if got := f.api.liveSubmits(); got != 2 {
		t.Fatalf("live submits = %d, want 2", got)
	}
}

func TestSessionTerminalRejectionStopsRetrying(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.start(t)

	f.api.setSubmitErr(ErrIntegrityRejected)
	f.sess.Submit()
	waitUntil(t, "failed state", func() bool { return f.sess.State() == StateFailed })

	if !errors.Is(f.sess.Err(), ErrIntegrityRejected) {
		t.Fatalf("err = %v", f.sess.Err())
	}
	f.clk.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	if got := f.api.liveSubmits(); got != 1 {
		t.Fatalf("live submits = %d, terminal rejection must not retry", got)
	}
	f.waitDone(t)
}

func TestSessionRetryBudgetExhaustion(t *testing.T) {
	f := newFixture(600, 3, func(cfg *Config) {
		cfg.RetryBase = time.Second
		cfg.RetryMax = 2
	})
	f.start(t)

	f.api.setSubmitErr(errNetDown)
	f.sess.Submit()
	f.advanceUntil(t, time.Second, 60, "retries exhausted", func() bool {
		return f.sess.State() == StateFailed
	})
	if !errors.Is(f.sess.Err(), ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", f.sess.Err())
	}
	if got := f.api.liveSubmits(); got != 2 {
		t.Fatalf("live submits = %d, want 2", got)
	}
}

// seedSeal plants a sealed snapshot in durable storage, simulating a prior
// interrupted run of the same exam.
func (f *fixture) seedSeal(t *testing.T, reason model.SealReason, remaining time.Duration, violations, maxViolations int) {
	t.Helper()
	var sl sealer
	snap, err := sl.seal(reason, f.examID, f.attemptID, model.ResponseSnapshot{
		Responses: map[string]model.ResponseEntry{
			"q1": {SelectedOptionID: "a"},
			"q2": {TextResponse: "half-done"},
		},
	}, remaining, violations, maxViolations, f.clk.Now())
	if err != nil {
		t.Fatalf("seed seal: %v", err)
	}
	if err := f.store.SaveSeal(f.examID, f.attemptID, *snap); err != nil {
		t.Fatalf("save seed seal: %v", err)
	}
}

func TestSessionResumeApprovedReturnsToActive(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.seedSeal(t, model.SealReasonNetworkLoss, 300*time.Second, 1, 3)
	reqID := uuid.New()
	f.api.resumeTicket = model.ResumeTicket{RequestID: reqID, ExpiresAt: f.clk.Now().Add(2 * time.Minute)}
	f.start(t)

	if got := f.sess.State(); got != StateAwaitingApproval {
		t.Fatalf("state = %s, want AWAITING_APPROVAL", got)
	}
	if got := f.api.resumeRequestCount(); got != 1 {
		t.Fatalf("resume requests = %d, want 1", got)
	}
	if err := f.sess.SetResponse("q3", answer("x")); !errors.Is(err, ErrNotActive) {
		t.Fatalf("set while awaiting = %v, want ErrNotActive", err)
	}

	f.broker.Publish(model.ResumeEvent{RequestID: reqID, Kind: model.ResumeEventApproved, TimeRemainingSeconds: 240})
	waitUntil(t, "active after approval", func() bool { return f.sess.State() == StateActive })

	if got := f.sess.Remaining(); got != 240*time.Second {
		t.Fatalf("remaining = %v, want granted 4m", got)
	}
	if got := f.sess.Violations(); got != 1 {
		t.Fatalf("violations = %d, restored count lost", got)
	}
	if sealed, _ := f.store.LoadSeal(f.examID); sealed != nil {
		t.Fatal("consumed seal not deleted")
	}
	if err := f.sess.SetResponse("q3", answer("x")); err != nil {
		t.Fatalf("set after approval: %v", err)
	}
	if f.sess.AttemptID() != f.attemptID {
		t.Fatal("attempt ID not recovered from seal")
	}
}

func TestSessionViolationLimitEnforcedAfterResume(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.seedSeal(t, model.SealReasonNetworkLoss, 300*time.Second, 1, 3)
	reqID := uuid.New()
	f.api.resumeTicket = model.ResumeTicket{RequestID: reqID, ExpiresAt: f.clk.Now().Add(2 * time.Minute)}
	f.start(t)

	f.broker.Publish(model.ResumeEvent{RequestID: reqID, Kind: model.ResumeEventApproved, TimeRemainingSeconds: 240})
	waitUntil(t, "active after approval", func() bool { return f.sess.State() == StateActive })

	// One restored violation plus two fresh ones reach the threshold the
	// exam was sealed with.
	f.sess.RecordViolation(model.ViolationTabHidden)
	f.sess.AcknowledgeWarning()
	f.sess.RecordViolation(model.ViolationDevtools)

	waitUntil(t, "forced submission after resume", func() bool { return f.sess.State() == StateSubmitted })
	if got := f.sess.Violations(); got != 3 {
		t.Fatalf("violations = %d, want 3", got)
	}
	if !errors.Is(f.sess.Cause(), ErrViolationLimit) {
		t.Fatalf("cause = %v, want ErrViolationLimit", f.sess.Cause())
	}
}

func TestSessionReloadReconstructsTimerEstimate(t *testing.T) {
	f := newFixture(600, 3, nil)
	sealTime := f.clk.Now()
	f.seedSeal(t, model.SealReasonNetworkLoss, 300*time.Second, 0, 3)
	// A checkpoint fresher than the seal is the better base.
	if err := f.store.SaveTimer(f.examID, f.attemptID, TimerCheckpoint{
		RemainingSeconds: 290,
		SavedAt:          sealTime.Add(30 * time.Second),
	}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	reqID := uuid.New()
	f.clk.Advance(60 * time.Second)
	f.api.resumeTicket = model.ResumeTicket{RequestID: reqID, ExpiresAt: f.clk.Now().Add(2 * time.Minute)}
	f.start(t)

	// 290s saved 30s before the reload leaves a 260s local estimate.
	if got := f.sess.Remaining(); got != 260*time.Second {
		t.Fatalf("reconstructed remaining = %v, want 4m20s", got)
	}

	f.broker.Publish(model.ResumeEvent{RequestID: reqID, Kind: model.ResumeEventApproved, TimeRemainingSeconds: 120})
	waitUntil(t, "active after approval", func() bool { return f.sess.State() == StateActive })
	if got := f.sess.Remaining(); got != 120*time.Second {
		t.Fatalf("remaining = %v, the granted time must replace the estimate", got)
	}
}

func TestSessionResumeDeclined(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.seedSeal(t, model.SealReasonNetworkLoss, 300*time.Second, 0, 3)
	reqID := uuid.New()
	f.api.resumeTicket = model.ResumeTicket{RequestID: reqID, ExpiresAt: f.clk.Now().Add(2 * time.Minute)}
	f.start(t)

	f.broker.Publish(model.ResumeEvent{RequestID: reqID, Kind: model.ResumeEventDeclined, Reason: "left the room"})
	waitUntil(t, "rejected", func() bool { return f.sess.State() == StateRejected })

	if !errors.Is(f.sess.Err(), ErrResumeDeclined) {
		t.Fatalf("err = %v, want ErrResumeDeclined", f.sess.Err())
	}
	// The seal stays on disk for audit; it was never delivered.
	if sealed, _ := f.store.LoadSeal(f.examID); sealed == nil {
		t.Fatal("seal removed on decline")
	}
	if got := f.api.sealedSubmits(); got != 0 {
		t.Fatalf("sealed submits = %d, want 0", got)
	}
	f.waitDone(t)
}

func TestSessionResumeExpires(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.seedSeal(t, model.SealReasonNetworkLoss, 300*time.Second, 0, 3)
	reqID := uuid.New()
	f.api.resumeTicket = model.ResumeTicket{RequestID: reqID, ExpiresAt: f.clk.Now().Add(30 * time.Second)}
	f.start(t)

	f.advanceUntil(t, 5*time.Second, 20, "expired", func() bool {
		return f.sess.State() == StateExpired
	})
	if !errors.Is(f.sess.Err(), ErrResumeExpired) {
		t.Fatalf("err = %v, want ErrResumeExpired", f.sess.Err())
	}
	f.waitDone(t)
}

func TestSessionResumeApprovalOutranksExpiry(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.seedSeal(t, model.SealReasonNetworkLoss, 300*time.Second, 0, 3)
	reqID := uuid.New()
	f.api.resumeTicket = model.ResumeTicket{RequestID: reqID, ExpiresAt: f.clk.Now().Add(30 * time.Second)}
	f.start(t)

	// Approval is already queued when the local countdown elapses.
	f.broker.Publish(model.ResumeEvent{RequestID: reqID, Kind: model.ResumeEventApproved, TimeRemainingSeconds: 120})
	f.clk.Advance(31 * time.Second)

	waitUntil(t, "approval applied", func() bool { return f.sess.State() == StateActive })
	if err := f.sess.Err(); err != nil {
		t.Fatalf("err = %v, approval must win the race", err)
	}
}

func TestSessionRestoredManualSealSubmitsDirectly(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.seedSeal(t, model.SealReasonManual, 200*time.Second, 0, 3)
	f.start(t)

	waitUntil(t, "direct delivery", func() bool { return f.sess.State() == StateSubmitted })
	if got := f.api.resumeRequestCount(); got != 0 {
		t.Fatalf("resume requests = %d, manual seal needs no approval", got)
	}
	if got := f.api.sealedSubmits(); got != 1 {
		t.Fatalf("sealed submits = %d, want 1", got)
	}
	if !f.store.empty() {
		t.Fatal("local storage not purged")
	}
}

func TestSessionInterruptSealsAndSendsBeacon(t *testing.T) {
	f := newFixture(600, 3, nil)
	f.start(t)
	f.sess.SetResponse("q1", answer("a"))

	f.sess.Interrupt()
	f.waitDone(t)

	if got := f.sess.State(); got != StateSealed {
		t.Fatalf("state after interrupt = %s, want SEALED", got)
	}
	sealed, _ := f.store.LoadSeal(f.examID)
	if sealed == nil || sealed.SealReason != model.SealReasonManual {
		t.Fatalf("durable seal = %+v", sealed)
	}
	if err := sealed.Verify(); err != nil {
		t.Fatalf("seal verify: %v", err)
	}

	if got := f.api.beaconCount(); got != 1 {
		t.Fatalf("beacons = %d, want 1", got)
	}
	b := f.api.firstBeacon()
	if b.AttemptID != f.attemptID || b.TimeRemainingSeconds != 600 {
		t.Fatalf("beacon = %+v", b)
	}
	if b.Responses["q1"].SelectedOptionID != "a" {
		t.Fatal("beacon missing responses")
	}

	// A second interrupt after the loop stopped is a no-op.
	f.sess.Interrupt()
	if got := f.api.beaconCount(); got != 1 {
		t.Fatalf("beacons = %d after double interrupt", got)
	}
}
