package service

import (
	"encoding/json"
	"sort"

	"github.com/vigil-exam/vigil/internal/model"
)

// Score grades a response set against an answer key and returns the total
// points earned. Single-choice questions award full points on an exact match,
// multi-choice on an exact set match with no partial credit. Text questions
// are left for manual grading and score zero here.
func Score(responses map[string]model.ResponseEntry, key map[string]AnswerKeyEntry) float64 {
	var total float64
	for qid, entry := range key {
		resp, ok := responses[qid]
		if !ok {
			continue
		}
		switch entry.Type {
		case model.QuestionTypeSingle:
			var want string
			if json.Unmarshal(entry.Key, &want) != nil {
				continue
			}
			if resp.SelectedOptionID != "" && resp.SelectedOptionID == want {
				total += entry.Points
			}
		case model.QuestionTypeMulti:
			var want []string
			if json.Unmarshal(entry.Key, &want) != nil {
				continue
			}
			if sameSet(resp.SelectedOptionIDs, want) {
				total += entry.Points
			}
		case model.QuestionTypeText:
			// Manual grading only.
		}
	}
	return total
}

func sameSet(got, want []string) bool {
	if len(got) == 0 || len(got) != len(want) {
		return false
	}
	g := append([]string(nil), got...)
	w := append([]string(nil), want...)
	sort.Strings(g)
	sort.Strings(w)
	for i := range g {
		if g[i] != w[i] {
			return false
		}
	}
	return true
}
