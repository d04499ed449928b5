package model

import (
	"time"

	"github.com/google/uuid"
)

// ResumeStatus enumerates resume request states. pending is the only
// non-terminal state.
type ResumeStatus string

const (
	ResumeStatusPending  ResumeStatus = "pending"
	ResumeStatusApproved ResumeStatus = "approved"
	ResumeStatusDeclined ResumeStatus = "declined"
	ResumeStatusExpired  ResumeStatus = "expired"
)

// ResumeRequest asks a human reviewer to let an interrupted attempt continue.
// Only one active (pending) request may exist per attempt at a time.
type ResumeRequest struct {
	ID             uuid.UUID    `json:"id"`
	AttemptID      uuid.UUID    `json:"attempt_id"`
	ExamTitle      string       `json:"exam_title"`
	RequesterName  string       `json:"requester_name"`
	CreatedAt      time.Time    `json:"created_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
	Status         ResumeStatus `json:"status"`
	DecidedAt      *time.Time   `json:"decided_at,omitempty"`
	DecisionReason string       `json:"decision_reason,omitempty"`
	GrantedSeconds *int         `json:"granted_seconds,omitempty"`
}

// ResumeEventKind enumerates decision events published on the resume channel.
type ResumeEventKind string

const (
	ResumeEventApproved ResumeEventKind = "approved"
	ResumeEventDeclined ResumeEventKind = "declined"
	ResumeEventExpired  ResumeEventKind = "expired"
)

// ResumeEvent is the wire form of a resume decision, delivered over the
// pub/sub channel keyed by request ID. Delivery is at-least-once; consumers
// must tolerate duplicates and late arrivals.
type ResumeEvent struct {
	RequestID            uuid.UUID       `json:"request_id"`
	Kind                 ResumeEventKind `json:"kind"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds,omitempty"`
	Reason               string          `json:"reason,omitempty"`
}

// ResumeTicket is returned to the session when a resume request is created.
type ResumeTicket struct {
	RequestID uuid.UUID `json:"request_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResumeDecisionRequest is the reviewer's approve payload.
type ResumeDecisionRequest struct {
	TimeRemainingSeconds int    `json:"time_remaining_seconds" binding:"omitempty,min=0,max=28800"`
	Reason               string `json:"reason" binding:"omitempty,max=500"`
}
