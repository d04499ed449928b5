package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigil-exam/vigil/internal/model"
)

var ErrResumeAlreadyPending = errors.New("a pending resume request already exists for this attempt")

// ResumeRepository handles resume request data access.
type ResumeRepository struct {
	pool *pgxpool.Pool
}

// NewResumeRepository creates a new ResumeRepository.
func NewResumeRepository(pool *pgxpool.Pool) *ResumeRepository {
	return &ResumeRepository{pool: pool}
}

const resumeColumns = `r.id, r.attempt_id, e.title, r.requester_name, r.created_at,
	r.expires_at, r.status, r.decided_at, r.decision_reason, r.granted_seconds`

func scanResume(row interface{ Scan(...any) error }) (*model.ResumeRequest, error) {
	rr := &model.ResumeRequest{}
	err := row.Scan(&rr.ID, &rr.AttemptID, &rr.ExamTitle, &rr.RequesterName, &rr.CreatedAt,
		&rr.ExpiresAt, &rr.Status, &rr.DecidedAt, &rr.DecisionReason, &rr.GrantedSeconds)
	if err != nil {
		return nil, err
	}
	return rr, nil
}

// Create inserts a pending resume request. A partial unique index on
// (attempt_id) WHERE status = 'pending' enforces the one-active-request rule.
func (r *ResumeRepository) Create(ctx context.Context, rr *model.ResumeRequest) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO resume_requests (attempt_id, requester_name, expires_at, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		rr.AttemptID, rr.RequesterName, rr.ExpiresAt, model.ResumeStatusPending,
	).Scan(&rr.ID, &rr.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrResumeAlreadyPending
		}
		return err
	}
	rr.Status = model.ResumeStatusPending
	return nil
}

// GetByID retrieves a resume request with its exam title.
func (r *ResumeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ResumeRequest, error) {
	return scanResume(r.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+`
		 FROM resume_requests r
		 JOIN attempts a ON r.attempt_id = a.id
		 JOIN exams e ON a.exam_id = e.id
		 WHERE r.id = $1`, id))
}

// GetPendingByAttempt returns the attempt's pending request, if any.
func (r *ResumeRepository) GetPendingByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.ResumeRequest, error) {
	return scanResume(r.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+`
		 FROM resume_requests r
		 JOIN attempts a ON r.attempt_id = a.id
		 JOIN exams e ON a.exam_id = e.id
		 WHERE r.attempt_id = $1 AND r.status = $2`,
		attemptID, model.ResumeStatusPending))
}

// ListPending returns one page of pending requests, oldest first, for the
// reviewer queue.
func (r *ResumeRepository) ListPending(ctx context.Context, limit, offset int) ([]model.ResumeRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resumeColumns+`
		 FROM resume_requests r
		 JOIN attempts a ON r.attempt_id = a.id
		 JOIN exams e ON a.exam_id = e.id
		 WHERE r.status = $1
		 ORDER BY r.created_at ASC
		 LIMIT $2 OFFSET $3`, model.ResumeStatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []model.ResumeRequest
	for rows.Next() {
		rr, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *rr)
	}
	return requests, rows.Err()
}

// CountPending returns the total size of the reviewer queue.
func (r *ResumeRepository) CountPending(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM resume_requests WHERE status = $1`,
		model.ResumeStatusPending).Scan(&total)
	return total, err
}

// Decide moves a pending request to a terminal status exactly once. The
// status guard makes concurrent decisions race-safe: the loser gets
// pgx.ErrNoRows.
func (r *ResumeRepository) Decide(
	ctx context.Context,
	id uuid.UUID,
	status model.ResumeStatus,
	reason string,
	grantedSeconds *int,
) (decidedAt time.Time, err error) {
	err = r.pool.QueryRow(ctx,
		`UPDATE resume_requests
		 SET status = $1, decision_reason = $2, granted_seconds = $3, decided_at = NOW()
		 WHERE id = $4 AND status = $5
		 RETURNING decided_at`,
		status, reason, grantedSeconds, id, model.ResumeStatusPending,
	).Scan(&decidedAt)
	return decidedAt, err
}

// ExpireOverdue flips every pending request past its deadline to expired and
// returns the affected IDs so their decision events can be published.
func (r *ResumeRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE resume_requests
		 SET status = $1, decided_at = NOW()
		 WHERE status = $2 AND expires_at < $3
		 RETURNING id`,
		model.ResumeStatusExpired, model.ResumeStatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
