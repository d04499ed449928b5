package attempt

import (
	"time"

	"github.com/google/uuid"

	"github.com/vigil-exam/vigil/internal/model"
)

// resumeHandshake tracks one pending resume request and guarantees exactly
// one terminal outcome is applied. The local countdown mirrors the broker's
// expiresAt; whichever of approval, decline, or expiry applies first wins,
// and everything after is ignored.
type resumeHandshake struct {
	requestID uuid.UUID
	expiresAt time.Time
	applied   bool
	outcome   model.ResumeEventKind
}

func (h *resumeHandshake) begin(ticket model.ResumeTicket) {
	h.requestID = ticket.RequestID
	h.expiresAt = ticket.ExpiresAt
	h.applied = false
	h.outcome = ""
}

func (h *resumeHandshake) pending() bool {
	return h.requestID != uuid.Nil && !h.applied
}

// expiryDue reports whether the local countdown has elapsed with no decision.
func (h *resumeHandshake) expiryDue(now time.Time) bool {
	return h.pending() && !now.Before(h.expiresAt)
}

// matches filters events to the active request; stale request IDs are noise.
func (h *resumeHandshake) matches(ev model.ResumeEvent) bool {
	return h.requestID != uuid.Nil && ev.RequestID == h.requestID
}

// apply commits a terminal outcome. It returns false if one was already
// applied; the caller must then discard the event (late-message safety).
func (h *resumeHandshake) apply(kind model.ResumeEventKind) bool {
	if h.applied {
		return false
	}
	h.applied = true
	h.outcome = kind
	return true
}

func (h *resumeHandshake) nextDeadline() time.Time {
	if !h.pending() {
		return time.Time{}
	}
	return h.expiresAt
}
