package service

import (
	"context"

	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/repository"
)

// ReviewerService handles reviewer account lookups and creation.
type ReviewerService struct {
	reviewerRepo *repository.ReviewerRepository
}

// NewReviewerService creates a new ReviewerService.
func NewReviewerService(reviewerRepo *repository.ReviewerRepository) *ReviewerService {
	return &ReviewerService{reviewerRepo: reviewerRepo}
}

// GetByEmail retrieves a reviewer by email.
func (s *ReviewerService) GetByEmail(ctx context.Context, email string) (*model.Reviewer, error) {
	return s.reviewerRepo.GetByEmail(ctx, email)
}

// Create registers a reviewer with a pre-hashed password.
func (s *ReviewerService) Create(ctx context.Context, reviewer *model.Reviewer) error {
	return s.reviewerRepo.Create(ctx, reviewer)
}
