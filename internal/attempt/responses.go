package attempt

import (
	"github.com/vigil-exam/vigil/internal/model"
)

// responseStore holds the in-memory answer map and flagged set. All writes
// go through set/setPage so the merge → persist → sync ordering is owned by
// the session; nothing else mutates it. Once frozen, every mutation is
// rejected until an approved resume unfreezes it.
type responseStore struct {
	snap   model.ResponseSnapshot
	frozen bool
}

func newResponseStore() *responseStore {
	return &responseStore{
		snap: model.ResponseSnapshot{Responses: map[string]model.ResponseEntry{}},
	}
}

// restore replaces the full state, e.g. from durable storage on re-entry.
func (s *responseStore) restore(snap model.ResponseSnapshot) {
	s.snap = snap.Clone()
	if s.snap.Responses == nil {
		s.snap.Responses = map[string]model.ResponseEntry{}
	}
	s.snap.Flagged = s.snap.FlaggedIDs()
}

// set merges a patch into the entry for questionID. Merging rather than
// replacing is required: flag state and answer content are set
// independently.
func (s *responseStore) set(questionID string, p model.ResponsePatch) error {
	if s.frozen {
		return ErrSealed
	}
	s.snap.Responses[questionID] = s.snap.Responses[questionID].Merge(p)
	s.snap.Flagged = s.snap.FlaggedIDs()
	return nil
}

func (s *responseStore) setPage(page int) error {
	if s.frozen {
		return ErrSealed
	}
	s.snap.CurrentPage = page
	return nil
}

func (s *responseStore) freeze()   { s.frozen = true }
func (s *responseStore) unfreeze() { s.frozen = false }

// snapshot returns a deep copy; callers can never alias internal state.
func (s *responseStore) snapshot() model.ResponseSnapshot {
	return s.snap.Clone()
}

func (s *responseStore) answeredCount() int {
	n := 0
	for _, e := range s.snap.Responses {
		if e.SelectedOptionID != "" || len(e.SelectedOptionIDs) > 0 || e.TextResponse != "" {
			n++
		}
	}
	return n
}
