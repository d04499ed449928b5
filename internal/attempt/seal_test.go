package attempt

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-exam/vigil/internal/model"
)

func sealInput() model.ResponseSnapshot {
	return model.ResponseSnapshot{
		Responses: map[string]model.ResponseEntry{
			"q1": {SelectedOptionID: "a"},
			"q2": {TextResponse: "answer", Flagged: true},
		},
	}
}

func TestSealerSealIsIdempotent(t *testing.T) {
	var s sealer
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	examID, attemptID := uuid.New(), uuid.New()

	first, err := s.seal(model.SealReasonNetworkLoss, examID, attemptID, sealInput(), 300*time.Second, 2, 5, now)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	second, err := s.seal(model.SealReasonTimerExpired, examID, attemptID, sealInput(), 100*time.Second, 5, 5, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second seal: %v", err)
	}
	if first != second {
		t.Fatal("repeated seal must return the existing snapshot")
	}
	if second.SealReason != model.SealReasonNetworkLoss || second.TimeRemainingSeconds != 300 {
		t.Fatalf("existing snapshot mutated: %+v", second)
	}
}

func TestSealerSnapshotFieldsAndHash(t *testing.T) {
	var s sealer
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	examID, attemptID := uuid.New(), uuid.New()

	snap, err := s.seal(model.SealReasonTimerExpired, examID, attemptID, sealInput(), 90*time.Second, 1, 3, now)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if snap.AttemptID != attemptID || snap.ExamID != examID {
		t.Fatal("identity fields not carried")
	}
	if !snap.SealedAt.Equal(now) || snap.ViolationCount != 1 || snap.MaxViolations != 3 {
		t.Fatalf("metadata = %+v", snap)
	}
	if len(snap.Flagged) != 1 || snap.Flagged[0] != "q2" {
		t.Fatalf("flagged = %v", snap.Flagged)
	}
	if snap.IntegrityHash == "" {
		t.Fatal("missing integrity hash")
	}
	if err := snap.Verify(); err != nil {
		t.Fatalf("verify sealed snapshot: %v", err)
	}
}

func TestSealerDeepCopiesResponses(t *testing.T) {
	var s sealer
	input := sealInput()
	snap, err := s.seal(model.SealReasonManual, uuid.New(), uuid.New(), input, time.Minute, 0, 0, time.Now())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	input.Responses["q1"] = model.ResponseEntry{SelectedOptionID: "tampered"}
	if got := snap.Responses["q1"].SelectedOptionID; got != "a" {
		t.Fatalf("sealed responses aliased the input: %q", got)
	}
	if err := snap.Verify(); err != nil {
		t.Fatalf("verify after input mutation: %v", err)
	}
}

func TestSealerRestoreRejectsTampering(t *testing.T) {
	var s sealer
	snap, err := s.seal(model.SealReasonNetworkLoss, uuid.New(), uuid.New(), sealInput(), time.Minute, 2, 3, time.Now())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	tampered := *snap
	tampered.ViolationCount = 0
	var r sealer
	if err := r.restore(&tampered); err == nil {
		t.Fatal("restore accepted a tampered snapshot")
	}
	if r.sealed() != nil {
		t.Fatal("tampered snapshot must not be adopted")
	}

	var ok sealer
	if err := ok.restore(snap); err != nil {
		t.Fatalf("restore valid snapshot: %v", err)
	}
}

func TestSealerDiscardStartsNewEpisode(t *testing.T) {
	var s sealer
	first, _ := s.seal(model.SealReasonNetworkLoss, uuid.New(), uuid.New(), sealInput(), time.Minute, 0, 0, time.Now())
	s.discard()
	if s.sealed() != nil {
		t.Fatal("discard left a snapshot")
	}
	second, err := s.seal(model.SealReasonManual, uuid.New(), uuid.New(), sealInput(), time.Minute, 0, 0, time.Now())
	if err != nil {
		t.Fatalf("reseal: %v", err)
	}
	if first == second {
		t.Fatal("new episode must produce a new snapshot")
	}
	if second.SealReason != model.SealReasonManual {
		t.Fatalf("reason = %s, want manual", second.SealReason)
	}
}
