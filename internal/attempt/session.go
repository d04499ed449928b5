package attempt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil-exam/vigil/internal/model"
)

// State is the session's externally visible lifecycle state. Active is the
// only state permitting response mutation and navigation.
type State string

const (
	StateInitializing     State = "INITIALIZING"
	StateActive           State = "ACTIVE"
	StateAwaitingApproval State = "AWAITING_APPROVAL"
	StateSealed           State = "SEALED"
	StateSubmitting       State = "SUBMITTING"
	StateSubmitted        State = "SUBMITTED"
	StateRejected         State = "REJECTED"
	StateExpired          State = "EXPIRED"
	StateFailed           State = "FAILED"
)

// terminal reports whether no further transitions can occur.
func (s State) terminal() bool {
	switch s {
	case StateSubmitted, StateRejected, StateExpired, StateFailed:
		return true
	}
	return false
}

// Hooks are presentation callbacks, invoked on the session's loop goroutine.
// They must return quickly and must not call back into the Session.
type Hooks struct {
	OnState         func(State)
	OnLowTime       func(remaining time.Duration)
	OnWarning       func(vt model.ViolationType, remainingBefore int, grace time.Duration)
	OnSealed        func(reason model.SealReason)
	OnResumePending func(ticket model.ResumeTicket)
	OnResult        func(res model.SubmitResult)
	OnFatal         func(err error)
}

// Config wires a Session's capabilities. API, Store, and Identity are
// required; Broker is required only when interrupted attempts should be
// resumable.
type Config struct {
	API      ExamAPI
	Store    DurableStore
	Broker   ResumeBroker
	Identity IdentityProvider
	Clock    Clock
	Log      zerolog.Logger

	ExamID     uuid.UUID
	AccessCode string

	ProbeInterval time.Duration
	RetryBase     time.Duration
	RetryCap      time.Duration
	RetryMax      int
	// WarningGrace is how long the taker has to acknowledge a violation
	// warning before the failure itself counts as threshold-exceeded.
	WarningGrace time.Duration

	Hooks Hooks
}

func (c *Config) defaults() {
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 5 * time.Second
	}
	if c.WarningGrace <= 0 {
		c.WarningGrace = 5 * time.Second
	}
}

// Session is one exam attempt from start to final submission: timer,
// violation ledger, response store, network monitor, sealing, retrying
// delivery, and the resume handshake, bound into a single event loop. All
// component state is owned by that loop; public methods hand work to it and
// wait, so the session is safe for concurrent use.
type Session struct {
	cfg Config
	log zerolog.Logger

	attemptID uuid.UUID
	exam      model.ExamPayload

	state   State
	timer   *wallTimer
	ledger  *violationLedger
	store   *responseStore
	monitor *netMonitor
	sealer  sealer
	submit  *submitCoordinator
	resume  resumeHandshake

	// warning prompt with its own short countdown
	warningActive   bool
	warningDeadline time.Time

	submitStarted bool
	submitKind    model.SubmissionKind
	result        *model.SubmitResult

	resumeEvents <-chan model.ResumeEvent
	resumeCancel func()

	ctx     context.Context
	cancel  context.CancelFunc
	cmds    chan func()
	done    chan struct{}
	stopped bool
	err     error
	// cause records why the session left Active early (violation
	// threshold), independent of whether delivery then succeeded.
	cause error
}

// New creates an unstarted session.
func New(cfg Config) *Session {
	cfg.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:    cfg,
		log:    cfg.Log.With().Str("component", "attempt_session").Logger(),
		state:  StateInitializing,
		timer:  &wallTimer{},
		store:  newResponseStore(),
		submit: newSubmitCoordinator(cfg.RetryBase, cfg.RetryCap, cfg.RetryMax),
		ctx:    ctx,
		cancel: cancel,
		cmds:   make(chan func()),
		done:   make(chan struct{}),
	}
}

// Start initializes the session and launches its loop. A sealed snapshot
// found in durable storage takes priority over a fresh start: the session
// then proceeds straight to delivery (timer-expired or manual seal) or to
// the resume handshake (network-loss seal), never to Active.
func (s *Session) Start(ctx context.Context) error {
	now := s.cfg.Clock.Now()
	s.monitor = newNetMonitor(s.cfg.ProbeInterval, now)

	snap, err := s.cfg.Store.LoadSeal(s.cfg.ExamID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Seal lookup failed, starting fresh")
	}
	if snap != nil {
		return s.startFromSeal(ctx, snap)
	}

	res, err := s.cfg.API.StartAttempt(ctx, s.cfg.ExamID, s.cfg.AccessCode, s.cfg.Identity.Identity())
	if err != nil {
		return fmt.Errorf("start attempt: %w", err)
	}
	s.attemptID = res.AttemptID
	s.exam = res.Exam
	s.ledger = newViolationLedger(res.Exam.MaxViolations)

	// Server answers first, then overlay the local copy: the taker's most
	// recent local edits are trusted over a possibly stale server copy.
	merged := model.ResponseSnapshot{Responses: map[string]model.ResponseEntry{}}
	for qid, e := range res.ExistingResponses {
		merged.Responses[qid] = e
	}
	if local, lerr := s.cfg.Store.LoadResponses(s.cfg.ExamID, s.attemptID); lerr != nil {
		s.log.Warn().Err(lerr).Msg("Local response restore failed")
	} else if local != nil {
		for qid, e := range local.Responses {
			merged.Responses[qid] = e
		}
		merged.CurrentPage = local.CurrentPage
	}
	s.store.restore(merged)

	s.timer.start(now, time.Duration(res.TimeRemainingSeconds)*time.Second)
	s.persistResponses()
	s.persistTimer(now)

	s.setState(StateActive)
	go s.run()
	return nil
}

func (s *Session) startFromSeal(ctx context.Context, snap *model.SealedSnapshot) error {
	if err := s.sealer.restore(snap); err != nil {
		// A locally tampered or corrupted seal cannot be trusted or
		// submitted; this needs a human.
		return fmt.Errorf("restore seal: %w", err)
	}
	s.attemptID = snap.AttemptID
	s.ledger = newViolationLedger(snap.MaxViolations)
	s.ledger.restore(snap.ViolationCount)
	s.store.restore(model.ResponseSnapshot{Responses: snap.Responses})
	s.store.freeze()

	// Rebuild a local remaining-time estimate so Remaining() means
	// something during the handshake. The seal doubles as a checkpoint
	// taken at SealedAt; the periodic checkpoint wins only when fresher.
	// An approval's authoritative grant replaces either.
	now := s.cfg.Clock.Now()
	base := TimerCheckpoint{RemainingSeconds: snap.TimeRemainingSeconds, SavedAt: snap.SealedAt}
	if cp, err := s.cfg.Store.LoadTimer(s.cfg.ExamID, s.attemptID); err != nil {
		s.log.Warn().Err(err).Msg("Timer checkpoint load failed")
	} else if cp != nil && cp.SavedAt.After(base.SavedAt) {
		base = *cp
	}
	s.timer.estimate(now, reconstructRemaining(base, now))

	if snap.SealReason == model.SealReasonNetworkLoss && s.cfg.Broker != nil {
		ticket, err := s.cfg.API.CreateResumeRequest(ctx, s.attemptID, s.cfg.Identity.Identity().DisplayName)
		if err != nil {
			return fmt.Errorf("create resume request: %w", err)
		}
		events, cancel, err := s.cfg.Broker.Subscribe(s.ctx, ticket.RequestID)
		if err != nil {
			return fmt.Errorf("subscribe resume events: %w", err)
		}
		s.resumeEvents = events
		s.resumeCancel = cancel
		s.resume.begin(*ticket)
		s.setState(StateAwaitingApproval)
		s.emitResumePending(*ticket)
		go s.run()
		return nil
	}

	// Restored seal is equivalent to having just sealed: deliver it.
	s.setState(StateSealed)
	s.emitSealed(snap.SealReason)
	s.beginSubmission(model.SubmissionKindSealed)
	go s.run()
	return nil
}

// ─── Public API (thread-safe) ───────────────────────────────────────

// SetResponse merges a patch into one question's response. Active only.
func (s *Session) SetResponse(questionID string, patch model.ResponsePatch) error {
	var err error
	s.do(func() { err = s.applyResponse(questionID, patch) })
	return err
}

// Navigate records the current page for crash recovery. Active only.
func (s *Session) Navigate(page int) error {
	var err error
	s.do(func() {
		if s.state != StateActive {
			err = ErrNotActive
			return
		}
		if err = s.store.setPage(page); err == nil {
			s.persistResponses()
		}
	})
	return err
}

// RecordViolation feeds one detected proctoring event into the ledger.
// Events arriving after the session left Active are dropped.
func (s *Session) RecordViolation(vt model.ViolationType) {
	s.do(func() { s.applyViolation(vt) })
}

// AcknowledgeWarning dismisses the active violation warning prompt.
func (s *Session) AcknowledgeWarning() {
	s.do(func() { s.warningActive = false })
}

// Submit is the taker's explicit finish action.
func (s *Session) Submit() error {
	var err error
	s.do(func() {
		if s.state != StateActive {
			err = ErrNotActive
			return
		}
		s.finishLive()
	})
	return err
}

// Interrupt seals with reason manual and fires the unload beacon, then stops
// the loop. The durable seal, not the beacon, is the recovery guarantee.
func (s *Session) Interrupt() {
	s.do(func() {
		if s.state.terminal() || s.submitStarted {
			return
		}
		now := s.cfg.Clock.Now()
		remaining := s.timer.remaining(now)
		s.applySeal(model.SealReasonManual, now)
		s.cfg.API.SendBeacon(model.BeaconPayload{
			AttemptID:            s.attemptID,
			TimeRemainingSeconds: int(remaining / time.Second),
			Responses:            s.store.snapshot().Responses,
		})
		s.stop(nil)
	})
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	var st State
	if !s.do(func() { st = s.state }) {
		// Loop already gone; state froze at its final value.
		return s.state
	}
	return st
}

// Remaining returns the time left on the wall-clock timer.
func (s *Session) Remaining() time.Duration {
	var d time.Duration
	s.do(func() { d = s.timer.remaining(s.cfg.Clock.Now()) })
	return d
}

// Responses returns a deep copy of the current answer state.
func (s *Session) Responses() model.ResponseSnapshot {
	var snap model.ResponseSnapshot
	s.do(func() { snap = s.store.snapshot() })
	return snap
}

// Violations returns the ledger count.
func (s *Session) Violations() int {
	n := 0
	s.do(func() { n = s.ledger.count() })
	return n
}

// Result returns the submission acknowledgment once Submitted.
func (s *Session) Result() *model.SubmitResult {
	var r *model.SubmitResult
	if !s.do(func() { r = s.result }) {
		return s.result
	}
	return r
}

// AttemptID returns the server-assigned attempt identifier.
func (s *Session) AttemptID() uuid.UUID { return s.attemptID }

// Done closes when the session loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the fatal error for Failed/Rejected/Expired sessions. A
// session forced to finish by the violation threshold but delivered
// successfully is Submitted with a nil Err; Cause reports the forcing.
func (s *Session) Err() error {
	var err error
	if !s.do(func() { err = s.err }) {
		return s.err
	}
	return err
}

// Cause returns why the session left Active early, if anything forced it
// (currently only ErrViolationLimit), regardless of the final state.
func (s *Session) Cause() error {
	var cause error
	if !s.do(func() { cause = s.cause }) {
		return s.cause
	}
	return cause
}

// ─── Event loop ─────────────────────────────────────────────────────

// do runs fn on the loop goroutine and waits. After the loop has stopped the
// call is a no-op returning false.
func (s *Session) do(fn func()) bool {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ran) }:
		<-ran
		return true
	case <-s.done:
		return false
	}
}

// post hands an async completion to the loop without waiting.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer s.cancel()
	defer func() {
		if s.resumeCancel != nil {
			s.resumeCancel()
		}
	}()

	for {
		if s.state.terminal() || s.stopped {
			return
		}
		now := s.cfg.Clock.Now()
		s.dispatchDue(now)
		if s.state.terminal() || s.stopped {
			return
		}

		var wakeCh <-chan time.Time
		if wake := s.nextWake(); !wake.IsZero() {
			d := wake.Sub(s.cfg.Clock.Now())
			if d < 0 {
				d = 0
			}
			wakeCh = s.cfg.Clock.After(d)
		}

		select {
		case fn := <-s.cmds:
			fn()
		case ev, ok := <-s.resumeEvents:
			if ok {
				s.onResumeEvent(ev)
			} else {
				s.resumeEvents = nil
			}
		case <-wakeCh:
		}
	}
}

// nextWake is the earliest deadline any component needs. Deadlines only
// exist for components whose state makes them relevant, which is how
// superseded schedules get cancelled: entering Sealed stops the timer but
// leaves the monitor running to detect reconnection.
func (s *Session) nextWake() time.Time {
	var wake time.Time
	earliest := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if wake.IsZero() || t.Before(wake) {
			wake = t
		}
	}
	earliest(s.timer.nextDeadline())
	earliest(s.monitor.nextDeadline())
	earliest(s.submit.nextDeadline())
	earliest(s.resume.nextDeadline())
	if s.warningActive {
		earliest(s.warningDeadline)
	}
	return wake
}

// dispatchDue fires every component whose deadline has passed.
func (s *Session) dispatchDue(now time.Time) {
	// Unacknowledged warning: the missed prompt itself counts as a
	// threshold-exceeded violation.
	if s.warningActive && !now.Before(s.warningDeadline) {
		s.warningActive = false
		s.ledger.record(model.ViolationWarningTimeout, now)
		s.logViolationAsync(model.ViolationEvent{Type: model.ViolationWarningTimeout, At: now})
		s.onViolationLimit(now)
		return
	}

	if s.state == StateActive {
		ev := s.timer.advance(now)
		if ev.lowTime {
			s.emitLowTime(s.timer.remaining(now))
		}
		if ev.checkpoint {
			s.persistTimer(now)
		}
		if ev.expired {
			s.onTimerExpired(now)
			return
		}
	}

	if s.monitor.due(now) {
		s.monitor.launched()
		go s.probe()
	}

	if s.state == StateSubmitting && s.submit.due(now) {
		s.launchSubmit()
	}

	if s.resume.expiryDue(now) {
		s.onResumeExpiry()
	}
}

// ─── Response store path ────────────────────────────────────────────

// applyResponse is the §merge → persist → sync write path: in-memory merge,
// synchronous durable save, then a best-effort async server sync whose
// failure never rolls anything back.
func (s *Session) applyResponse(questionID string, patch model.ResponsePatch) error {
	if s.state != StateActive {
		return ErrNotActive
	}
	if err := s.store.set(questionID, patch); err != nil {
		return err
	}
	s.persistResponses()

	attemptID := s.attemptID
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		if err := s.cfg.API.SaveAnswer(ctx, attemptID, questionID, patch); err != nil {
			s.log.Debug().Err(err).Str("question_id", questionID).Msg("Incremental save failed")
		}
	}()
	return nil
}

func (s *Session) persistResponses() {
	if err := s.cfg.Store.SaveResponses(s.cfg.ExamID, s.attemptID, s.store.snapshot()); err != nil {
		s.log.Warn().Err(err).Msg("Durable response save failed")
	}
}

func (s *Session) persistTimer(now time.Time) {
	if err := s.cfg.Store.SaveTimer(s.cfg.ExamID, s.attemptID, s.timer.checkpoint(now)); err != nil {
		s.log.Warn().Err(err).Msg("Durable timer save failed")
	}
}

// ─── Violations ─────────────────────────────────────────────────────

func (s *Session) applyViolation(vt model.ViolationType) {
	if s.state != StateActive {
		return
	}
	now := s.cfg.Clock.Now()
	count := s.ledger.record(vt, now)
	s.logViolationAsync(model.ViolationEvent{Type: vt, At: now})
	s.log.Info().Str("type", string(vt)).Int("count", count).Msg("Violation recorded")

	if s.ledger.exceeded() {
		s.onViolationLimit(now)
		return
	}
	s.warningActive = true
	s.warningDeadline = now.Add(s.cfg.WarningGrace)
	s.emitWarning(vt, s.ledger.remainingBefore(), s.cfg.WarningGrace)
}

func (s *Session) logViolationAsync(ev model.ViolationEvent) {
	attemptID := s.attemptID
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		if err := s.cfg.API.LogViolation(ctx, attemptID, ev); err != nil {
			s.log.Debug().Err(err).Msg("Violation log failed")
		}
	}()
}

// onViolationLimit is fatal to the session: no further input, then one
// submission, live when reachable and sealed otherwise.
func (s *Session) onViolationLimit(now time.Time) {
	if s.submitStarted {
		return
	}
	s.log.Warn().Int("count", s.ledger.count()).Msg("Violation limit exceeded")
	s.cause = ErrViolationLimit
	s.warningActive = false
	if s.monitor.healthy {
		s.finishLive()
		return
	}
	s.applySeal(model.SealReasonManual, now)
}

// ─── Timer expiry / sealing / submission ────────────────────────────

func (s *Session) onTimerExpired(now time.Time) {
	if s.submitStarted {
		return
	}
	if s.monitor.healthy {
		s.finishLive()
		return
	}
	s.applySeal(model.SealReasonTimerExpired, now)
}

// finishLive freezes input and delivers the live payload.
func (s *Session) finishLive() {
	if s.submitStarted {
		return
	}
	s.store.freeze()
	s.timer.stop()
	s.warningActive = false
	s.beginSubmission(model.SubmissionKindLive)
}

// applySeal runs the sealing engine and transitions to Sealed. Seal
// construction happens-before any submission attempt for this episode.
func (s *Session) applySeal(reason model.SealReason, now time.Time) {
	remaining := s.timer.remaining(now)
	snap, err := s.sealer.seal(reason, s.cfg.ExamID, s.attemptID, s.store.snapshot(), remaining, s.ledger.count(), s.ledger.limit, now)
	if err != nil {
		s.stop(fmt.Errorf("seal: %w", err))
		return
	}
	if err := s.cfg.Store.SaveSeal(s.cfg.ExamID, s.attemptID, *snap); err != nil {
		s.log.Error().Err(err).Msg("Durable seal save failed")
	}
	s.store.freeze()
	s.timer.stop()
	s.warningActive = false
	s.setState(StateSealed)
	s.emitSealed(reason)
	s.log.Info().Str("reason", string(reason)).Int("answers", s.store.answeredCount()).Msg("Session sealed")

	// A timer-expired seal has nothing to wait for; deliver as soon as the
	// coordinator can. A network-loss seal waits for the monitor to report
	// recovery before the first attempt is worth making.
	if reason == model.SealReasonTimerExpired {
		s.beginSubmission(model.SubmissionKindSealed)
	}
}

// beginSubmission enters Submitting exactly once per attempt; re-entrant
// triggers (timer expiry racing a manual submit) are dropped here.
func (s *Session) beginSubmission(kind model.SubmissionKind) {
	if s.submitStarted {
		return
	}
	s.submitStarted = true
	s.submitKind = kind
	s.setState(StateSubmitting)
	s.launchSubmit()
}

func (s *Session) launchSubmit() {
	s.submit.launched()
	kind := s.submitKind
	attemptID := s.attemptID
	var sealed *model.SealedSnapshot
	if kind == model.SubmissionKindSealed {
		sealed = s.sealer.sealed()
	}

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		defer cancel()

		var res *model.SubmitResult
		var err error
		if kind == model.SubmissionKindSealed {
			res, err = s.cfg.API.SubmitSealed(ctx, *sealed)
		} else {
			res, err = s.cfg.API.SubmitLive(ctx, attemptID)
		}
		s.post(func() { s.onSubmitDone(res, err) })
	}()
}

func (s *Session) onSubmitDone(res *model.SubmitResult, err error) {
	if s.submit.done {
		// Success already applied; a straggling retry result is dropped.
		return
	}
	now := s.cfg.Clock.Now()

	if err == nil {
		s.submit.succeeded()
		s.result = res
		if perr := s.cfg.Store.Purge(s.cfg.ExamID, s.attemptID); perr != nil {
			s.log.Warn().Err(perr).Msg("Local purge failed after submission")
		}
		s.monitor.stop()
		s.setState(StateSubmitted)
		s.emitResult(*res)
		s.log.Info().Float64("score", res.Score).Msg("Attempt submitted")
		return
	}

	if isTerminalSubmitErr(err) {
		s.submit.abort()
		s.stopFailed(err)
		return
	}

	if !s.submit.failed(now) {
		s.stopFailed(fmt.Errorf("%w: last error: %v", ErrRetriesExhausted, err))
		return
	}
	s.log.Warn().Err(err).Int("tries", s.submit.tries).Msg("Submission failed, retry scheduled")
}

// ─── Network monitor ────────────────────────────────────────────────

func (s *Session) probe() {
	ctx, cancel := context.WithTimeout(s.ctx, 4*time.Second)
	defer cancel()
	err := s.cfg.API.Probe(ctx)
	s.post(func() { s.onProbeResult(err == nil) })
}

func (s *Session) onProbeResult(ok bool) {
	now := s.cfg.Clock.Now()
	transitioned, healthy := s.monitor.result(ok, now)
	if !transitioned {
		return
	}

	if !healthy {
		s.log.Warn().Msg("Connectivity lost")
		if s.state == StateActive {
			s.applySeal(model.SealReasonNetworkLoss, now)
		}
		return
	}

	s.log.Info().Msg("Connectivity restored")
	switch s.state {
	case StateSealed:
		s.beginSubmission(model.SubmissionKindSealed)
	case StateSubmitting:
		// Skip the remaining backoff delay.
		s.submit.retryNow(now)
	}
}

// ─── Resume handshake ───────────────────────────────────────────────

func (s *Session) onResumeEvent(ev model.ResumeEvent) {
	if s.state != StateAwaitingApproval || !s.resume.matches(ev) {
		return
	}
	if !s.resume.apply(ev.Kind) {
		return // a terminal outcome already applied; late event ignored
	}

	switch ev.Kind {
	case model.ResumeEventApproved:
		s.onResumeApproved(ev.TimeRemainingSeconds)
	case model.ResumeEventDeclined:
		s.err = ErrResumeDeclined
		if ev.Reason != "" {
			s.err = fmt.Errorf("%w: %s", ErrResumeDeclined, ev.Reason)
		}
		s.setState(StateRejected)
		s.emitFatal(s.err)
	case model.ResumeEventExpired:
		s.err = ErrResumeExpired
		s.setState(StateExpired)
		s.emitFatal(s.err)
	}
}

// onResumeExpiry is the local countdown mirror of expiresAt. An approval
// already sitting in the event queue outranks it: human decisions win the
// race deterministically.
func (s *Session) onResumeExpiry() {
	select {
	case ev, ok := <-s.resumeEvents:
		if ok {
			s.onResumeEvent(ev)
			return
		}
	default:
	}
	if !s.resume.apply(model.ResumeEventExpired) {
		return
	}
	s.err = ErrResumeExpired
	s.setState(StateExpired)
	s.emitFatal(s.err)
}

// onResumeApproved returns to Active: the approval's authoritative remaining
// time replaces any local reconstruction, the store unseals, and the
// consumed snapshot is discarded so a later interruption seals anew.
func (s *Session) onResumeApproved(grantedSeconds int) {
	now := s.cfg.Clock.Now()
	s.sealer.discard()
	if err := s.cfg.Store.DeleteSeal(s.cfg.ExamID, s.attemptID); err != nil {
		s.log.Warn().Err(err).Msg("Seal delete failed after approval")
	}
	s.store.unfreeze()
	s.timer.start(now, time.Duration(grantedSeconds)*time.Second)
	s.persistTimer(now)
	if s.resumeCancel != nil {
		s.resumeCancel()
		s.resumeCancel = nil
	}
	s.resumeEvents = nil
	s.setState(StateActive)
	s.log.Info().Int("granted_seconds", grantedSeconds).Msg("Resume approved")
}

// ─── Lifecycle plumbing ─────────────────────────────────────────────

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.emitState(st)
}

func (s *Session) stopFailed(err error) {
	s.err = err
	s.setState(StateFailed)
	s.emitFatal(err)
	s.log.Error().Err(err).Msg("Session failed")
}

func (s *Session) stop(err error) {
	if err != nil {
		s.stopFailed(err)
		return
	}
	s.stopped = true
}

func (s *Session) emitState(st State) {
	if s.cfg.Hooks.OnState != nil {
		s.cfg.Hooks.OnState(st)
	}
}

func (s *Session) emitLowTime(remaining time.Duration) {
	if s.cfg.Hooks.OnLowTime != nil {
		s.cfg.Hooks.OnLowTime(remaining)
	}
}

func (s *Session) emitWarning(vt model.ViolationType, remainingBefore int, grace time.Duration) {
	if s.cfg.Hooks.OnWarning != nil {
		s.cfg.Hooks.OnWarning(vt, remainingBefore, grace)
	}
}

func (s *Session) emitSealed(reason model.SealReason) {
	if s.cfg.Hooks.OnSealed != nil {
		s.cfg.Hooks.OnSealed(reason)
	}
}

func (s *Session) emitResumePending(t model.ResumeTicket) {
	if s.cfg.Hooks.OnResumePending != nil {
		s.cfg.Hooks.OnResumePending(t)
	}
}

func (s *Session) emitResult(res model.SubmitResult) {
	if s.cfg.Hooks.OnResult != nil {
		s.cfg.Hooks.OnResult(res)
	}
}

func (s *Session) emitFatal(err error) {
	if s.cfg.Hooks.OnFatal != nil {
		s.cfg.Hooks.OnFatal(err)
	}
}
