package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusClosed    ExamStatus = "CLOSED"
)

// Exam represents an exam entity as held by the catalog.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	MaxViolations   int        `json:"max_violations"`
	RequireFullscreen bool     `json:"require_fullscreen"`
	AllowGuests     bool       `json:"allow_guests"`
	AccessCodeHash  string     `json:"-"`
	WindowStart     *time.Time `json:"window_start,omitempty"`
	WindowEnd       *time.Time `json:"window_end,omitempty"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// QuestionType enumerates supported answer shapes.
type QuestionType string

const (
	QuestionTypeSingle QuestionType = "single_choice"
	QuestionTypeMulti  QuestionType = "multi_choice"
	QuestionTypeText   QuestionType = "text"
)

// Question is the full question record, answer key included. Never sent to
// exam takers.
type Question struct {
	ID           uuid.UUID       `json:"id"`
	ExamID       uuid.UUID       `json:"exam_id"`
	Type         QuestionType    `json:"type"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	AnswerKey    json.RawMessage `json:"answer_key,omitempty"`
	Points       float64         `json:"points"`
	OrderNum     int             `json:"order_num"`
}

// QuestionForTaker is a question with the answer key stripped.
type QuestionForTaker struct {
	ID           uuid.UUID       `json:"id"`
	Type         QuestionType    `json:"type"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	Points       float64         `json:"points"`
	OrderNum     int             `json:"order_num"`
}

// ExamPayload is the Redis-cached payload sent to exam takers at attempt
// start (no correct answers).
type ExamPayload struct {
	ExamID            uuid.UUID          `json:"exam_id"`
	Title             string             `json:"title"`
	DurationMinutes   int                `json:"duration_minutes"`
	MaxViolations     int                `json:"max_violations"`
	RequireFullscreen bool               `json:"require_fullscreen"`
	Questions         []QuestionForTaker `json:"questions"`
}
