package model

import (
	"time"

	"github.com/google/uuid"
)

// SubjectKind distinguishes authenticated students from anonymous guests.
type SubjectKind string

const (
	SubjectKindStudent SubjectKind = "student"
	SubjectKindGuest   SubjectKind = "guest"
)

// Subject is the person taking an exam. Students exist ahead of time; guest
// subjects are created on attempt start from their contact tuple.
type Subject struct {
	ID           uuid.UUID   `json:"id"`
	Kind         SubjectKind `json:"kind"`
	Name         string      `json:"name"`
	Email        string      `json:"email,omitempty"`
	ExternalRef  string      `json:"external_ref,omitempty"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Reviewer is a staff account allowed to decide resume requests.
type Reviewer struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// StudentLoginRequest authenticates a student by external reference.
type StudentLoginRequest struct {
	ExternalRef string `json:"external_ref" binding:"required,min=2,max=64"`
	Password    string `json:"password" binding:"required,min=4,max=128"`
}

// ReviewerLoginRequest authenticates a reviewer.
type ReviewerLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}
