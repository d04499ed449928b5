package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the server-side states of an attempt record.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusFinalized  AttemptStatus = "FINALIZED"
)

// SubmissionKind distinguishes how an attempt was finalized.
type SubmissionKind string

const (
	SubmissionKindLive   SubmissionKind = "live"
	SubmissionKindSealed SubmissionKind = "sealed"
)

// Attempt is the server's durable record of one exam-taking session.
type Attempt struct {
	ID             uuid.UUID       `json:"id"`
	ExamID         uuid.UUID       `json:"exam_id"`
	SubjectID      uuid.UUID       `json:"subject_id"`
	StartedAt      time.Time       `json:"started_at"`
	EndAt          time.Time       `json:"end_at"`
	FinalizedAt    *time.Time      `json:"finalized_at,omitempty"`
	Status         AttemptStatus   `json:"status"`
	FinalScore     *float64        `json:"final_score,omitempty"`
	SubmissionKind *SubmissionKind `json:"submission_kind,omitempty"`
	SealReason     *SealReason     `json:"seal_reason,omitempty"`
	ViolationCount int             `json:"violation_count"`
}

// GuestInfo is the contact tuple identifying an anonymous taker.
type GuestInfo struct {
	Name  string `json:"name" binding:"required,min=2,max=120"`
	Email string `json:"email" binding:"required,email"`
}

// StartAttemptRequest is the payload for starting (or re-entering) an attempt.
type StartAttemptRequest struct {
	AccessCode string     `json:"access_code" binding:"omitempty,min=4,max=64"`
	Guest      *GuestInfo `json:"guest" binding:"omitempty"`
}

// StartAttemptResult is returned on attempt start. Re-entering an in-progress
// attempt returns the same attempt ID, the saved answers, and the
// authoritative remaining time.
type StartAttemptResult struct {
	AttemptID            uuid.UUID                `json:"attempt_id"`
	Exam                 ExamPayload              `json:"exam"`
	TimeRemainingSeconds int                      `json:"time_remaining_seconds"`
	ExistingResponses    map[string]ResponseEntry `json:"existing_responses,omitempty"`
	GuestToken           string                   `json:"guest_token,omitempty"`
}

// SubmitResult is the terminal acknowledgment of a finalized attempt.
type SubmitResult struct {
	AttemptID   uuid.UUID `json:"attempt_id"`
	Finalized   bool      `json:"finalized"`
	Score       float64   `json:"score"`
	FinalizedAt time.Time `json:"finalized_at"`
}

// BeaconPayload is the best-effort fire-and-forget state dump sent on page
// unload. Never relied upon for correctness.
type BeaconPayload struct {
	AttemptID            uuid.UUID                `json:"attempt_id"`
	TimeRemainingSeconds int                      `json:"time_remaining_seconds"`
	Responses            map[string]ResponseEntry `json:"responses"`
}
