package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigil-exam/vigil/internal/model"
)

// AttemptRepository handles attempt and answer data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, subject_id, started_at, end_at, finalized_at,
	status, final_score, submission_kind, seal_reason, violation_count`

func scanAttempt(row interface{ Scan(...any) error }) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.ExamID, &a.SubjectID, &a.StartedAt, &a.EndAt, &a.FinalizedAt,
		&a.Status, &a.FinalScore, &a.SubmissionKind, &a.SealReason, &a.ViolationCount)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// GetByExamAndSubject retrieves the attempt for a specific exam-subject
// combination. At most one exists per pair.
func (r *AttemptRepository) GetByExamAndSubject(ctx context.Context, examID, subjectID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE exam_id = $1 AND subject_id = $2`,
		examID, subjectID))
}

// Create inserts a new attempt. A concurrent insert for the same pair loses
// the ON CONFLICT race and gets pgx.ErrNoRows; callers then re-fetch.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, subject_id, end_at, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, subject_id) DO NOTHING
		 RETURNING id, started_at`,
		a.ExamID, a.SubjectID, a.EndAt, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.StartedAt)
}

// Finalize marks an attempt FINALIZED exactly once. The guard on status makes
// repeated finalization a no-op: the second caller gets pgx.ErrNoRows and
// must read back the existing record for its idempotent response.
func (r *AttemptRepository) Finalize(
	ctx context.Context,
	id uuid.UUID,
	score float64,
	kind model.SubmissionKind,
	sealReason *model.SealReason,
	violationCount int,
) (finalizedAt time.Time, err error) {
	err = r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET status = $1, final_score = $2, submission_kind = $3, seal_reason = $4,
		     violation_count = $5, finalized_at = NOW()
		 WHERE id = $6 AND status = $7
		 RETURNING finalized_at`,
		model.AttemptStatusFinalized, score, kind, sealReason, violationCount,
		id, model.AttemptStatusInProgress,
	).Scan(&finalizedAt)
	return finalizedAt, err
}

// ExtendEnd pushes the attempt's end timestamp, used when a resume approval
// grants remaining time after a gap.
func (r *AttemptRepository) ExtendEnd(ctx context.Context, id uuid.UUID, endAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET end_at = $1 WHERE id = $2 AND status = $3`,
		endAt, id, model.AttemptStatusInProgress)
	return err
}

// ListOverdue returns in-progress attempts whose end timestamp plus grace has
// passed. Used by the sweep worker to force-finalize abandoned attempts.
func (r *AttemptRepository) ListOverdue(ctx context.Context, grace time.Duration, limit int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE status = $1 AND end_at + $2::interval < NOW()
		 ORDER BY end_at ASC
		 LIMIT $3`,
		model.AttemptStatusInProgress, grace.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// UpsertAnswer creates or updates one answer without locking.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, attemptID, questionID uuid.UUID, entry model.ResponseEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		attemptID, questionID, data)
	return err
}

// ReplaceAnswers swaps the full answer set of an attempt in one transaction.
// Used when accepting a sealed snapshot: its content supersedes whatever
// incremental saves made it through before the interruption.
func (r *AttemptRepository) ReplaceAnswers(ctx context.Context, attemptID uuid.UUID, responses map[string]model.ResponseEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM attempt_answers WHERE attempt_id = $1`, attemptID); err != nil {
		return err
	}
	for qid, entry := range responses {
		questionID, err := uuid.Parse(qid)
		if err != nil {
			continue // unknown key, not a question reference
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, answer)
			 VALUES ($1, $2, $3::jsonb)`,
			attemptID, questionID, data); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListAnswers returns the attempt's saved answers keyed by question ID.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) (map[string]model.ResponseEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[string]model.ResponseEntry)
	for rows.Next() {
		var questionID uuid.UUID
		var data []byte
		if err := rows.Scan(&questionID, &data); err != nil {
			return nil, err
		}
		var entry model.ResponseEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, err
		}
		answers[questionID.String()] = entry
	}
	return answers, rows.Err()
}

// CountViolations returns the number of recorded violations for an attempt.
func (r *AttemptRepository) CountViolations(ctx context.Context, attemptID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM violations WHERE attempt_id = $1`, attemptID).Scan(&n)
	return n, err
}

// SaveSealedSubmission stores the accepted sealed snapshot for audit.
func (r *AttemptRepository) SaveSealedSubmission(ctx context.Context, snap model.SealedSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO sealed_submissions (attempt_id, payload, integrity_hash, seal_reason, sealed_at)
		 VALUES ($1, $2::jsonb, $3, $4, $5)
		 ON CONFLICT (attempt_id) DO NOTHING`,
		snap.AttemptID, payload, snap.IntegrityHash, snap.SealReason, snap.SealedAt)
	return err
}
