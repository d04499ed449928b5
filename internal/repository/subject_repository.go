package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigil-exam/vigil/internal/model"
)

var ErrDuplicateExternalRef = errors.New("subject with this external reference already exists")

// SubjectRepository handles exam taker data access.
type SubjectRepository struct {
	pool *pgxpool.Pool
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(pool *pgxpool.Pool) *SubjectRepository {
	return &SubjectRepository{pool: pool}
}

const subjectColumns = `id, kind, name, email, external_ref, password_hash, created_at`

func scanSubject(row interface{ Scan(...any) error }) (*model.Subject, error) {
	s := &model.Subject{}
	err := row.Scan(&s.ID, &s.Kind, &s.Name, &s.Email, &s.ExternalRef, &s.PasswordHash, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a subject by ID.
func (r *SubjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Subject, error) {
	return scanSubject(r.pool.QueryRow(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id))
}

// GetByExternalRef retrieves a student by their unique external reference.
func (r *SubjectRepository) GetByExternalRef(ctx context.Context, ref string) (*model.Subject, error) {
	return scanSubject(r.pool.QueryRow(ctx,
		`SELECT `+subjectColumns+` FROM subjects
		 WHERE kind = $1 AND external_ref = $2`, model.SubjectKindStudent, ref))
}

// CreateStudent inserts a pre-provisioned student subject.
func (r *SubjectRepository) CreateStudent(ctx context.Context, s *model.Subject) error {
	s.Kind = model.SubjectKindStudent
	err := r.pool.QueryRow(ctx,
		`INSERT INTO subjects (kind, name, email, external_ref, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		s.Kind, s.Name, s.Email, s.ExternalRef, s.PasswordHash,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateExternalRef
		}
		return err
	}
	return nil
}

// FindOrCreateGuest resolves a guest subject by contact tuple, creating it on
// first sight. The same tuple always maps to the same subject so a guest's
// re-entry finds their in-progress attempt.
func (r *SubjectRepository) FindOrCreateGuest(ctx context.Context, info model.GuestInfo) (*model.Subject, error) {
	s := &model.Subject{Kind: model.SubjectKindGuest, Name: info.Name, Email: info.Email}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO subjects (kind, name, email)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (kind, email, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, created_at`,
		s.Kind, s.Name, s.Email,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}
