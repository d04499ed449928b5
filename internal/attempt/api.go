package attempt

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-exam/vigil/internal/model"
)

// Identity is the subject taking the exam: either an authenticated bearer
// token or a guest contact tuple. One engine, two adapters.
type Identity struct {
	Kind        model.SubjectKind
	Token       string
	Guest       *model.GuestInfo
	DisplayName string
}

// IdentityProvider supplies the taker's identity to the session.
type IdentityProvider interface {
	Identity() Identity
}

// ExamAPI is the session's view of the record server. SendBeacon is
// fire-and-forget by contract: it must never block and its delivery is not
// assumed. All other calls are synchronous and context-bound.
type ExamAPI interface {
	StartAttempt(ctx context.Context, examID uuid.UUID, accessCode string, ident Identity) (*model.StartAttemptResult, error)
	SaveAnswer(ctx context.Context, attemptID uuid.UUID, questionID string, patch model.ResponsePatch) error
	LogViolation(ctx context.Context, attemptID uuid.UUID, v model.ViolationEvent) error
	SubmitLive(ctx context.Context, attemptID uuid.UUID) (*model.SubmitResult, error)
	SubmitSealed(ctx context.Context, snap model.SealedSnapshot) (*model.SubmitResult, error)
	SendBeacon(payload model.BeaconPayload)
	CreateResumeRequest(ctx context.Context, attemptID uuid.UUID, requesterName string) (*model.ResumeTicket, error)
	// Probe is a lightweight reachability check, independent of any
	// transport-level online/offline signal.
	Probe(ctx context.Context) error
}

// ResumeBroker delivers resume decision events scoped to one request ID.
// Delivery is at-least-once: the session must tolerate duplicates and
// late arrivals.
type ResumeBroker interface {
	Subscribe(ctx context.Context, requestID uuid.UUID) (<-chan model.ResumeEvent, func(), error)
}

// TimerCheckpoint is the periodically persisted timer state used to
// reconstruct the end timestamp after a reload.
type TimerCheckpoint struct {
	RemainingSeconds int       `json:"remaining_seconds"`
	SavedAt          time.Time `json:"saved_at"`
}

// DurableStore is crash-surviving local persistence, scoped per
// (examID, attemptID) so concurrent attempts on different exams never
// collide. It is a best-effort durability layer: callers log and swallow
// save failures.
type DurableStore interface {
	SaveResponses(examID, attemptID uuid.UUID, snap model.ResponseSnapshot) error
	LoadResponses(examID, attemptID uuid.UUID) (*model.ResponseSnapshot, error)
	SaveTimer(examID, attemptID uuid.UUID, cp TimerCheckpoint) error
	LoadTimer(examID, attemptID uuid.UUID) (*TimerCheckpoint, error)
	SaveSeal(examID, attemptID uuid.UUID, snap model.SealedSnapshot) error
	// LoadSeal returns the stored seal for the exam, if any, regardless of
	// attempt: at re-entry the attempt ID is only known from the seal itself.
	LoadSeal(examID uuid.UUID) (*model.SealedSnapshot, error)
	DeleteSeal(examID, attemptID uuid.UUID) error
	// Purge removes all keys for the attempt after a successful submission.
	Purge(examID, attemptID uuid.UUID) error
}
