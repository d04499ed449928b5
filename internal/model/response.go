package model

import "sort"

// ResponsePatch is a partial update to one question's response. Nil fields
// are left untouched by a merge, so answer content and flag state can be set
// independently.
type ResponsePatch struct {
	SelectedOptionID  *string   `json:"selected_option_id,omitempty"`
	SelectedOptionIDs *[]string `json:"selected_option_ids,omitempty"`
	TextResponse      *string   `json:"text_response,omitempty"`
	Flagged           *bool     `json:"flagged,omitempty"`
}

// ResponseEntry is the current committed response for one question.
type ResponseEntry struct {
	SelectedOptionID  string   `json:"selected_option_id,omitempty"`
	SelectedOptionIDs []string `json:"selected_option_ids,omitempty"`
	TextResponse      string   `json:"text_response,omitempty"`
	Flagged           bool     `json:"flagged,omitempty"`
}

// Empty reports whether the entry carries no answer content. A flag on an
// otherwise unanswered question still counts as a live entry.
func (e ResponseEntry) Empty() bool {
	return e.SelectedOptionID == "" && len(e.SelectedOptionIDs) == 0 &&
		e.TextResponse == "" && !e.Flagged
}

// Merge applies a patch and returns the updated entry.
func (e ResponseEntry) Merge(p ResponsePatch) ResponseEntry {
	if p.SelectedOptionID != nil {
		e.SelectedOptionID = *p.SelectedOptionID
	}
	if p.SelectedOptionIDs != nil {
		ids := make([]string, len(*p.SelectedOptionIDs))
		copy(ids, *p.SelectedOptionIDs)
		e.SelectedOptionIDs = ids
	}
	if p.TextResponse != nil {
		e.TextResponse = *p.TextResponse
	}
	if p.Flagged != nil {
		e.Flagged = *p.Flagged
	}
	return e
}

// ResponseSnapshot is the full per-attempt answer state persisted to durable
// local storage on every mutation.
type ResponseSnapshot struct {
	Responses   map[string]ResponseEntry `json:"responses"`
	Flagged     []string                 `json:"flagged"`
	CurrentPage int                      `json:"current_page"`
}

// Clone returns a deep copy of the snapshot.
func (s ResponseSnapshot) Clone() ResponseSnapshot {
	out := ResponseSnapshot{
		Responses:   make(map[string]ResponseEntry, len(s.Responses)),
		CurrentPage: s.CurrentPage,
	}
	for k, v := range s.Responses {
		if len(v.SelectedOptionIDs) > 0 {
			ids := make([]string, len(v.SelectedOptionIDs))
			copy(ids, v.SelectedOptionIDs)
			v.SelectedOptionIDs = ids
		}
		out.Responses[k] = v
	}
	if s.Flagged != nil {
		out.Flagged = make([]string, len(s.Flagged))
		copy(out.Flagged, s.Flagged)
	}
	return out
}

// FlaggedIDs derives the sorted flagged-question list from the response map.
func (s ResponseSnapshot) FlaggedIDs() []string {
	var ids []string
	for qid, e := range s.Responses {
		if e.Flagged {
			ids = append(ids, qid)
		}
	}
	sort.Strings(ids)
	return ids
}
