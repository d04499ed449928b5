package model

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-exam/vigil/internal/canonical"
)

// SealReason records why a session froze its answer state.
type SealReason string

const (
	SealReasonTimerExpired SealReason = "timer_expired"
	SealReasonNetworkLoss  SealReason = "network_loss"
	SealReasonManual       SealReason = "manual"
)

// ErrHashMismatch is returned when a snapshot's integrity hash does not match
// a recomputation over its fields.
var ErrHashMismatch = errors.New("snapshot integrity hash mismatch")

// SealedSnapshot is an immutable, hashed freeze of an attempt's answer state.
// Once constructed it is never mutated; any field change invalidates
// IntegrityHash and must cause rejection by the consumer.
type SealedSnapshot struct {
	AttemptID            uuid.UUID                `json:"attempt_id"`
	ExamID               uuid.UUID                `json:"exam_id"`
	Responses            map[string]ResponseEntry `json:"responses"`
	Flagged              []string                 `json:"flagged"`
	SealedAt             time.Time                `json:"sealed_at"`
	SealReason           SealReason               `json:"seal_reason"`
	TimeRemainingSeconds int                      `json:"time_remaining_seconds"`
	ViolationCount       int                      `json:"violation_count"`
	// MaxViolations carries the exam's threshold through a reload; a
	// resumed session must keep enforcing it without refetching the exam.
	MaxViolations int `json:"max_violations"`
	IntegrityHash        string                   `json:"integrity_hash,omitempty"`
}

// ComputeHash returns the canonical (RFC 8785) sha256 digest over every field
// except IntegrityHash itself.
func (s SealedSnapshot) ComputeHash() (string, error) {
	c := s
	c.IntegrityHash = ""
	return canonical.DigestValue(c)
}

// Verify recomputes the digest and compares it against IntegrityHash.
func (s SealedSnapshot) Verify() error {
	if s.IntegrityHash == "" {
		return ErrHashMismatch
	}
	got, err := s.ComputeHash()
	if err != nil {
		return err
	}
	if got != s.IntegrityHash {
		return ErrHashMismatch
	}
	return nil
}
