package attempt

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-exam/vigil/internal/model"
)

// sealer freezes the response state into at most one immutable, hashed
// snapshot per interruption episode. seal is idempotent: while a snapshot
// exists, repeated calls return it unchanged.
type sealer struct {
	snap *model.SealedSnapshot
}

func (s *sealer) sealed() *model.SealedSnapshot { return s.snap }

// seal constructs the snapshot: deep-copied responses, timestamp, then the
// canonical integrity hash over every field except the hash itself.
func (s *sealer) seal(
	reason model.SealReason,
	examID, attemptID uuid.UUID,
	responses model.ResponseSnapshot,
	remaining time.Duration,
	violationCount, violationLimit int,
	now time.Time,
) (*model.SealedSnapshot, error) {
	if s.snap != nil {
		return s.snap, nil
	}

	frozen := responses.Clone()
	snap := &model.SealedSnapshot{
		AttemptID:            attemptID,
		ExamID:               examID,
		Responses:            frozen.Responses,
		Flagged:              frozen.FlaggedIDs(),
		SealedAt:             now,
		SealReason:           reason,
		TimeRemainingSeconds: int(remaining / time.Second),
		ViolationCount:       violationCount,
		MaxViolations:        violationLimit,
	}

	hash, err := snap.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("compute integrity hash: %w", err)
	}
	snap.IntegrityHash = hash

	s.snap = snap
	return snap, nil
}

// restore adopts a snapshot recovered from durable storage. The snapshot is
// verified first; a corrupted seal must never be adopted or submitted.
func (s *sealer) restore(snap *model.SealedSnapshot) error {
	if err := snap.Verify(); err != nil {
		return err
	}
	s.snap = snap
	return nil
}

// discard drops a consumed snapshot (approved resume). A later interruption
// starts a fresh episode and produces a new seal.
func (s *sealer) discard() { s.snap = nil }
