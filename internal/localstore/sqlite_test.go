package localstore

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-exam/vigil/internal/attempt"
	"github.com/vigil-exam/vigil/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResponsesRoundTrip(t *testing.T) {
	store := openTestStore(t)
	examID, attemptID := uuid.New(), uuid.New()

	loaded, err := store.LoadResponses(examID, attemptID)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if loaded != nil {
		t.Fatal("expected nil snapshot before any save")
	}

	snap := model.ResponseSnapshot{
		Responses: map[string]model.ResponseEntry{
			"q1": {SelectedOptionID: "b", Flagged: true},
			"q2": {TextResponse: "essay draft"},
		},
		Flagged:     []string{"q1"},
		CurrentPage: 3,
	}
	if err := store.SaveResponses(examID, attemptID, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err = store.LoadResponses(examID, attemptID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected snapshot after save")
	}
	if loaded.CurrentPage != 3 || len(loaded.Responses) != 2 {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}
	if loaded.Responses["q1"].SelectedOptionID != "b" || !loaded.Responses["q1"].Flagged {
		t.Fatalf("q1 entry corrupted: %+v", loaded.Responses["q1"])
	}
}

func TestSaveOverwritesPrevious(t *testing.T) {
	store := openTestStore(t)
	examID, attemptID := uuid.New(), uuid.New()

	first := model.ResponseSnapshot{Responses: map[string]model.ResponseEntry{"q1": {SelectedOptionID: "a"}}}
	second := model.ResponseSnapshot{Responses: map[string]model.ResponseEntry{"q1": {SelectedOptionID: "c"}}}

	if err := store.SaveResponses(examID, attemptID, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveResponses(examID, attemptID, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	loaded, err := store.LoadResponses(examID, attemptID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Responses["q1"].SelectedOptionID != "c" {
		t.Fatalf("expected latest save to win, got %+v", loaded.Responses["q1"])
	}
}

func TestTimerCheckpointRoundTrip(t *testing.T) {
	store := openTestStore(t)
	examID, attemptID := uuid.New(), uuid.New()

	cp := attempt.TimerCheckpoint{RemainingSeconds: 1200, SavedAt: time.Now().UTC().Truncate(time.Second)}
	if err := store.SaveTimer(examID, attemptID, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.LoadTimer(examID, attemptID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || loaded.RemainingSeconds != 1200 {
		t.Fatalf("unexpected checkpoint: %+v", loaded)
	}
	if !loaded.SavedAt.Equal(cp.SavedAt) {
		t.Fatalf("saved_at drifted: got %v, want %v", loaded.SavedAt, cp.SavedAt)
	}
}

func TestSealSurvivesAttemptScoping(t *testing.T) {
	store := openTestStore(t)
	examID, attemptID := uuid.New(), uuid.New()

	snap := model.SealedSnapshot{
		AttemptID:            attemptID,
		ExamID:               examID,
		Responses:            map[string]model.ResponseEntry{"q1": {SelectedOptionID: "a"}},
		SealedAt:             time.Now().UTC().Truncate(time.Second),
		SealReason:           model.SealReasonNetworkLoss,
		TimeRemainingSeconds: 300,
		ViolationCount:       1,
		MaxViolations:        3,
	}
	hash, err := snap.ComputeHash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	snap.IntegrityHash = hash

	if err := store.SaveSeal(examID, attemptID, snap); err != nil {
		t.Fatalf("save seal: %v", err)
	}

	// LoadSeal is keyed by exam only: re-entry discovers the attempt ID
	// from the seal.
	loaded, err := store.LoadSeal(examID)
	if err != nil {
		t.Fatalf("load seal: %v", err)
	}
	if loaded == nil || loaded.AttemptID != attemptID {
		t.Fatalf("unexpected seal: %+v", loaded)
	}
	if err := loaded.Verify(); err != nil {
		t.Fatalf("stored seal failed verification: %v", err)
	}
	if loaded.MaxViolations != 3 {
		t.Fatalf("max violations = %d, threshold lost across reload", loaded.MaxViolations)
	}

	if err := store.DeleteSeal(examID, attemptID); err != nil {
		t.Fatalf("delete seal: %v", err)
	}
	loaded, err = store.LoadSeal(examID)
	if err != nil {
		t.Fatalf("load after delete: %v", err)
	}
	if loaded != nil {
		t.Fatal("expected seal gone after delete")
	}
}

func TestPurgeRemovesEverything(t *testing.T) {
	store := openTestStore(t)
	examID, attemptID := uuid.New(), uuid.New()
	otherAttempt := uuid.New()

	if err := store.SaveResponses(examID, attemptID, model.ResponseSnapshot{}); err != nil {
		t.Fatalf("save responses: %v", err)
	}
	if err := store.SaveTimer(examID, attemptID, attempt.TimerCheckpoint{RemainingSeconds: 60}); err != nil {
		t.Fatalf("save timer: %v", err)
	}
	if err := store.SaveTimer(examID, otherAttempt, attempt.TimerCheckpoint{RemainingSeconds: 90}); err != nil {
		t.Fatalf("save other timer: %v", err)
	}

	if err := store.Purge(examID, attemptID); err != nil {
		t.Fatalf("purge: %v", err)
	}

	if snap, _ := store.LoadResponses(examID, attemptID); snap != nil {
		t.Fatal("responses survived purge")
	}
	if cp, _ := store.LoadTimer(examID, attemptID); cp != nil {
		t.Fatal("timer survived purge")
	}
	// Other attempts are untouched.
	if cp, _ := store.LoadTimer(examID, otherAttempt); cp == nil || cp.RemainingSeconds != 90 {
		t.Fatal("purge leaked into another attempt")
	}
}
