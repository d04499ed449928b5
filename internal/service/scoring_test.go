package service

import (
	"encoding/json"
	"testing"

	"github.com/vigil-exam/vigil/internal/model"
)

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestScoreSingleChoice(t *testing.T) {
	key := map[string]AnswerKeyEntry{
		"q1": {Type: model.QuestionTypeSingle, Key: rawJSON(t, "b"), Points: 10},
		"q2": {Type: model.QuestionTypeSingle, Key: rawJSON(t, "a"), Points: 5},
	}
	responses := map[string]model.ResponseEntry{
		"q1": {SelectedOptionID: "b"},
		"q2": {SelectedOptionID: "c"},
	}

	if got := Score(responses, key); got != 10 {
		t.Fatalf("score = %v, want 10", got)
	}
}

func TestScoreMultiChoiceExactSet(t *testing.T) {
	key := map[string]AnswerKeyEntry{
		"q1": {Type: model.QuestionTypeMulti, Key: rawJSON(t, []string{"a", "c"}), Points: 8},
	}

	cases := []struct {
		name string
		got  []string
		want float64
	}{
		{"exact match any order", []string{"c", "a"}, 8},
		{"subset gets nothing", []string{"a"}, 0},
		{"superset gets nothing", []string{"a", "b", "c"}, 0},
		{"empty gets nothing", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			responses := map[string]model.ResponseEntry{"q1": {SelectedOptionIDs: tc.got}}
			if got := Score(responses, key); got != tc.want {
				t.Fatalf("score = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScoreTextNotAutoGraded(t *testing.T) {
	key := map[string]AnswerKeyEntry{
		"q1": {Type: model.QuestionTypeText, Key: rawJSON(t, "essay rubric"), Points: 20},
	}
	responses := map[string]model.ResponseEntry{
		"q1": {TextResponse: "a thoughtful essay"},
	}

	if got := Score(responses, key); got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
}

func TestScoreIgnoresUnansweredAndUnknown(t *testing.T) {
	key := map[string]AnswerKeyEntry{
		"q1": {Type: model.QuestionTypeSingle, Key: rawJSON(t, "a"), Points: 10},
	}
	responses := map[string]model.ResponseEntry{
		"q9": {SelectedOptionID: "a"}, // not in the key
	}

	if got := Score(responses, key); got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
}
