package attempt

import "errors"

var (
	// ErrNotActive is returned for mutations outside the Active state.
	ErrNotActive = errors.New("session is not active")
	// ErrSealed is returned when mutating a frozen response store.
	ErrSealed = errors.New("response store is sealed")

	// Terminal submission rejections. Retrying either is futile; they are
	// surfaced as requiring manual intervention, never as transient.
	ErrIntegrityRejected = errors.New("submission rejected: integrity hash mismatch")
	ErrWindowExpired     = errors.New("submission rejected: outside allowed submission window")

	// ErrRetriesExhausted means the bounded retry budget was spent on
	// transient failures.
	ErrRetriesExhausted = errors.New("submission retries exhausted")

	// ErrViolationLimit ends the session when the proctoring threshold is hit.
	ErrViolationLimit = errors.New("violation limit exceeded")

	// Resume handshake outcomes that end the session.
	ErrResumeDeclined = errors.New("resume request declined")
	ErrResumeExpired  = errors.New("resume request expired")
)

// isTerminalSubmitErr distinguishes integrity/window rejections from
// transient network failure: the former must never be retried.
func isTerminalSubmitErr(err error) bool {
	return errors.Is(err, ErrIntegrityRejected) || errors.Is(err, ErrWindowExpired)
}
