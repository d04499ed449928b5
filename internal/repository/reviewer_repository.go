package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigil-exam/vigil/internal/model"
)

var ErrDuplicateReviewerEmail = errors.New("reviewer with this email already exists")

// ReviewerRepository handles reviewer account data access.
type ReviewerRepository struct {
	pool *pgxpool.Pool
}

// NewReviewerRepository creates a new ReviewerRepository.
func NewReviewerRepository(pool *pgxpool.Pool) *ReviewerRepository {
	return &ReviewerRepository{pool: pool}
}

// GetByEmail retrieves a reviewer by their unique email.
func (r *ReviewerRepository) GetByEmail(ctx context.Context, email string) (*model.Reviewer, error) {
	rv := &model.Reviewer{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM reviewers WHERE email = $1`, email,
	).Scan(&rv.ID, &rv.Name, &rv.Email, &rv.PasswordHash, &rv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rv, nil
}

// Create inserts a new reviewer account.
func (r *ReviewerRepository) Create(ctx context.Context, rv *model.Reviewer) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO reviewers (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		rv.Name, rv.Email, rv.PasswordHash,
	).Scan(&rv.ID, &rv.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReviewerEmail
		}
		return err
	}
	return nil
}
