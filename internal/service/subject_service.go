package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/repository"
)

// SubjectService handles taker identity lookups and registration.
type SubjectService struct {
	subjectRepo *repository.SubjectRepository
}

// NewSubjectService creates a new SubjectService.
func NewSubjectService(subjectRepo *repository.SubjectRepository) *SubjectService {
	return &SubjectService{subjectRepo: subjectRepo}
}

// GetByID retrieves a subject by UUID.
func (s *SubjectService) GetByID(ctx context.Context, id uuid.UUID) (*model.Subject, error) {
	return s.subjectRepo.GetByID(ctx, id)
}

// GetStudentByExternalRef retrieves a student by their institutional
// reference.
func (s *SubjectService) GetStudentByExternalRef(ctx context.Context, ref string) (*model.Subject, error) {
	return s.subjectRepo.GetByExternalRef(ctx, ref)
}

// CreateStudent registers a student subject with a pre-hashed password.
func (s *SubjectService) CreateStudent(ctx context.Context, subject *model.Subject) error {
	subject.Kind = model.SubjectKindStudent
	return s.subjectRepo.CreateStudent(ctx, subject)
}
