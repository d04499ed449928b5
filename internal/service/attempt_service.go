package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/repository"
)

// Domain Errors
var (
	ErrExamNotAvailable  = errors.New("exam is not available")
	ErrInvalidAccessCode = errors.New("invalid access code")
	ErrGuestsNotAllowed  = errors.New("exam does not admit guests")
	ErrAttemptFinalized  = errors.New("attempt is already finalized")
	ErrNotYourAttempt    = errors.New("attempt belongs to a different subject")
	ErrExpiredWindow     = errors.New("sealed snapshot falls outside the submission window")
)

// answerJob is the queue payload handed to the answer persistence worker.
type answerJob struct {
	AttemptID  uuid.UUID           `json:"attempt_id"`
	QuestionID string              `json:"question_id"`
	Entry      model.ResponseEntry `json:"entry"`
}

// violationJob is the queue payload handed to the violation persistence worker.
type violationJob struct {
	AttemptID uuid.UUID           `json:"attempt_id"`
	Type      model.ViolationType `json:"type"`
	At        time.Time           `json:"at"`
}

// AttemptService owns the attempt lifecycle: idempotent start, the hot
// answer/violation write path through Redis, and live/sealed finalization.
type AttemptService struct {
	cfg         *config.Config
	attemptRepo *repository.AttemptRepository
	subjectRepo *repository.SubjectRepository
	catalog     *CatalogService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	cfg *config.Config,
	attemptRepo *repository.AttemptRepository,
	subjectRepo *repository.SubjectRepository,
	catalog *CatalogService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		cfg:         cfg,
		attemptRepo: attemptRepo,
		subjectRepo: subjectRepo,
		catalog:     catalog,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// ResolveGuest finds or creates the guest subject for a contact tuple. The
// same tuple always maps to the same subject, so a guest who reconnects
// re-enters their own attempt.
func (s *AttemptService) ResolveGuest(ctx context.Context, info model.GuestInfo) (*model.Subject, error) {
	return s.subjectRepo.FindOrCreateGuest(ctx, info)
}

// StartAttempt starts a subject's attempt on an exam, or re-enters the
// existing one. Re-entry returns the same attempt ID, the answers saved so
// far, and the authoritative remaining time computed from the attempt's end
// timestamp, never a restarted clock.
func (s *AttemptService) StartAttempt(
	ctx context.Context,
	examID uuid.UUID,
	subject *model.Subject,
	req model.StartAttemptRequest,
) (*model.StartAttemptResult, error) {
	exam, err := s.catalog.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	now := time.Now()
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}
	if exam.WindowStart != nil && now.Before(*exam.WindowStart) {
		return nil, ErrExamNotAvailable
	}
	if exam.WindowEnd != nil && now.After(*exam.WindowEnd) {
		return nil, ErrExamNotAvailable
	}
	if subject.Kind == model.SubjectKindGuest && !exam.AllowGuests {
		return nil, ErrGuestsNotAllowed
	}
	if exam.AccessCodeHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(exam.AccessCodeHash), []byte(req.AccessCode)) != nil {
			return nil, ErrInvalidAccessCode
		}
	}

	payload, err := s.catalog.GetExamPayload(ctx, examID)
	if err != nil {
		return nil, err
	}

	// Re-entry path: same subject, same exam, attempt still in progress.
	existing, err := s.attemptRepo.GetByExamAndSubject(ctx, examID, subject.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		return s.reenter(ctx, existing, payload)
	}

	attempt := &model.Attempt{
		ExamID:    examID,
		SubjectID: subject.ID,
		EndAt:     now.Add(time.Duration(exam.DurationMinutes) * time.Minute),
		Status:    model.AttemptStatusInProgress,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start from another device lost the insert race;
			// fall through to re-entry on the winner's row.
			existing, fetchErr := s.attemptRepo.GetByExamAndSubject(ctx, examID, subject.ID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, fetch failed: %w", fetchErr)
			}
			return s.reenter(ctx, existing, payload)
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.cacheAttemptMeta(ctx, attempt)

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("exam_id", examID.String()).
		Str("subject_id", subject.ID.String()).
		Msg("Attempt started")

	return &model.StartAttemptResult{
		AttemptID:            attempt.ID,
		Exam:                 *payload,
		TimeRemainingSeconds: int(time.Until(attempt.EndAt).Seconds()),
	}, nil
}

func (s *AttemptService) reenter(
	ctx context.Context,
	attempt *model.Attempt,
	payload *model.ExamPayload,
) (*model.StartAttemptResult, error) {
	if attempt.Status == model.AttemptStatusFinalized {
		return nil, ErrAttemptFinalized
	}

	responses, err := s.loadResponses(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	s.cacheAttemptMeta(ctx, attempt)

	remaining := int(time.Until(attempt.EndAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	return &model.StartAttemptResult{
		AttemptID:            attempt.ID,
		Exam:                 *payload,
		TimeRemainingSeconds: remaining,
		ExistingResponses:    responses,
	}, nil
}

// cacheAttemptMeta refreshes the Redis fast-lane keys for an in-progress
// attempt so the hot path never hits PostgreSQL.
func (s *AttemptService) cacheAttemptMeta(ctx context.Context, attempt *model.Attempt) {
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptEndKey(attempt.ID.String()), attempt.EndAt.Unix(), 0)
	pipe.Set(ctx, config.CacheKey.SubjectActiveAttemptKey(attempt.SubjectID.String()), attempt.ID.String(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		// Not fatal, the DB fallback in loadEndAt self-heals.
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to cache attempt meta")
	}
}

// loadResponses reads an attempt's saved answers from Redis, falling back to
// PostgreSQL (with self-heal) on a cache miss.
func (s *AttemptService) loadResponses(ctx context.Context, attemptID uuid.UUID) (map[string]model.ResponseEntry, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached answers: %w", err)
	}

	if len(raw) == 0 {
		// Cache miss (eviction or restart): rebuild from the durable log.
		responses, dbErr := s.attemptRepo.ListAnswers(ctx, attemptID)
		if dbErr != nil {
			return nil, fmt.Errorf("load answers: %w", dbErr)
		}
		if len(responses) > 0 {
			heal := make(map[string]interface{}, len(responses))
			for qid, entry := range responses {
				b, mErr := json.Marshal(entry)
				if mErr != nil {
					continue
				}
				heal[qid] = b
			}
			_ = s.rdb.HSet(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String()), heal).Err()
		}
		return responses, nil
	}

	responses := make(map[string]model.ResponseEntry, len(raw))
	for qid, v := range raw {
		var entry model.ResponseEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal cached answer %s: %w", qid, err)
		}
		responses[qid] = entry
	}
	return responses, nil
}

// loadEndAt resolves the attempt's end timestamp, Redis first with a
// PostgreSQL fallback that self-heals the cache.
func (s *AttemptService) loadEndAt(ctx context.Context, attemptID uuid.UUID) (time.Time, error) {
	key := config.CacheKey.AttemptEndKey(attemptID.String())
	val, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		unix, pErr := strconv.ParseInt(val, 10, 64)
		if pErr == nil {
			return time.Unix(unix, 0), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("get end_at: %w", err)
	}

	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return time.Time{}, fmt.Errorf("attempt not found in cache or db: %w", err)
	}
	_ = s.rdb.Set(ctx, key, attempt.EndAt.Unix(), 0).Err()
	return attempt.EndAt, nil
}

// verifyActive loads the attempt and checks ownership and liveness.
func (s *AttemptService) verifyActive(ctx context.Context, attemptID, subjectID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.SubjectID != subjectID {
		return nil, ErrNotYourAttempt
	}
	if attempt.Status == model.AttemptStatusFinalized {
		return nil, ErrAttemptFinalized
	}
	return attempt, nil
}

// GetState returns the attempt's saved answers and authoritative remaining
// time, used by a reconnecting client to resynchronize.
func (s *AttemptService) GetState(ctx context.Context, attemptID, subjectID uuid.UUID) (*model.StartAttemptResult, error) {
	attempt, err := s.verifyActive(ctx, attemptID, subjectID)
	if err != nil {
		return nil, err
	}

	payload, err := s.catalog.GetExamPayload(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	responses, err := s.loadResponses(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	endAt, err := s.loadEndAt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	remaining := int(time.Until(endAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	return &model.StartAttemptResult{
		AttemptID:            attempt.ID,
		Exam:                 *payload,
		TimeRemainingSeconds: remaining,
		ExistingResponses:    responses,
	}, nil
}

// SaveAnswer records one question's response on the hot path: the patch is
// merged against the cached entry, HSET back into the attempt's Redis hash,
// and the merged entry queued for the async PostgreSQL persistence worker.
func (s *AttemptService) SaveAnswer(
	ctx context.Context,
	attemptID, subjectID uuid.UUID,
	questionID string,
	patch model.ResponsePatch,
) error {
	if _, err := s.verifyActive(ctx, attemptID, subjectID); err != nil {
		return err
	}

	var entry model.ResponseEntry
	raw, err := s.rdb.HGet(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String()), questionID).Result()
	if err == nil {
		if uErr := json.Unmarshal([]byte(raw), &entry); uErr != nil {
			entry = model.ResponseEntry{}
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get cached answer: %w", err)
	}
	entry = entry.Merge(patch)

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.rdb.HSet(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String()), questionID, entryJSON).Err(); err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}

	job, err := json.Marshal(answerJob{AttemptID: attemptID, QuestionID: questionID, Entry: entry})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		return fmt.Errorf("enqueue answer: %w", err)
	}
	return nil
}

// LogViolation appends a proctoring violation to the persistence queue. The
// client's ledger enforces the threshold; the server keeps the durable trail.
func (s *AttemptService) LogViolation(ctx context.Context, attemptID, subjectID uuid.UUID, vtype model.ViolationType) error {
	if _, err := s.verifyActive(ctx, attemptID, subjectID); err != nil {
		return err
	}

	job, err := json.Marshal(violationJob{AttemptID: attemptID, Type: vtype, At: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, job).Err(); err != nil {
		return fmt.Errorf("enqueue violation: %w", err)
	}
	return nil
}

// Beacon accepts a best-effort unload-time state dump. It is queued without
// an ownership check so a dying page's last write never 4xxes; the worker
// validates before persisting.
func (s *AttemptService) Beacon(ctx context.Context, payload model.BeaconPayload) error {
	job, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal beacon: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistBeaconsQueue, job).Err()
}

// SubmitLive finalizes an attempt from a connected client. Idempotent: a
// repeated submission returns the recorded result without re-grading.
func (s *AttemptService) SubmitLive(
	ctx context.Context,
	attemptID, subjectID uuid.UUID,
	responses map[string]model.ResponseEntry,
) (*model.SubmitResult, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.SubjectID != subjectID {
		return nil, ErrNotYourAttempt
	}
	if attempt.Status == model.AttemptStatusFinalized {
		return finalizedResult(attempt), nil
	}
	if time.Now().After(attempt.EndAt.Add(s.cfg.SubmitGrace)) {
		return nil, ErrExpiredWindow
	}

	// The submission body supersedes incremental autosaves.
	if len(responses) > 0 {
		if err := s.attemptRepo.ReplaceAnswers(ctx, attemptID, responses); err != nil {
			return nil, fmt.Errorf("persist answers: %w", err)
		}
	} else {
		responses, err = s.loadResponses(ctx, attemptID)
		if err != nil {
			return nil, err
		}
	}

	violations, err := s.attemptRepo.CountViolations(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}

	return s.finalize(ctx, attempt, responses, model.SubmissionKindLive, nil, violations)
}

// SubmitSealed finalizes an attempt from a sealed snapshot delivered after a
// gap. The snapshot's integrity hash is recomputed server-side; any mismatch
// is a terminal rejection. The seal time, not the delivery time, must fall
// inside the submission window.
func (s *AttemptService) SubmitSealed(
	ctx context.Context,
	subjectID uuid.UUID,
	snap model.SealedSnapshot,
) (*model.SubmitResult, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, snap.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.SubjectID != subjectID {
		return nil, ErrNotYourAttempt
	}
	if attempt.Status == model.AttemptStatusFinalized {
		return finalizedResult(attempt), nil
	}

	if err := snap.Verify(); err != nil {
		return nil, err
	}
	if snap.ExamID != attempt.ExamID {
		return nil, model.ErrHashMismatch
	}
	if snap.SealedAt.After(attempt.EndAt.Add(s.cfg.SubmitGrace)) {
		return nil, ErrExpiredWindow
	}

	// The sealed snapshot is the complete answer state at seal time; it
	// supersedes whatever incremental saves made it through before the gap.
	if err := s.attemptRepo.ReplaceAnswers(ctx, snap.AttemptID, snap.Responses); err != nil {
		return nil, fmt.Errorf("persist answers: %w", err)
	}
	if err := s.attemptRepo.SaveSealedSubmission(ctx, snap); err != nil {
		return nil, fmt.Errorf("save sealed submission: %w", err)
	}

	reason := snap.SealReason
	return s.finalize(ctx, attempt, snap.Responses, model.SubmissionKindSealed, &reason, snap.ViolationCount)
}

func (s *AttemptService) finalize(
	ctx context.Context,
	attempt *model.Attempt,
	responses map[string]model.ResponseEntry,
	kind model.SubmissionKind,
	sealReason *model.SealReason,
	violationCount int,
) (*model.SubmitResult, error) {
	answerKey, err := s.catalog.GetAnswerKey(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	score := Score(responses, answerKey)

	finalizedAt, err := s.attemptRepo.Finalize(ctx, attempt.ID, score, kind, sealReason, violationCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent finalize won; return its recorded result.
			current, fetchErr := s.attemptRepo.GetByID(ctx, attempt.ID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent finalize detected, fetch failed: %w", fetchErr)
			}
			return finalizedResult(current), nil
		}
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	s.purgeAttemptCache(ctx, attempt)

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("kind", string(kind)).
		Float64("score", score).
		Int("violations", violationCount).
		Msg("Attempt finalized")

	return &model.SubmitResult{
		AttemptID:   attempt.ID,
		Finalized:   true,
		Score:       score,
		FinalizedAt: finalizedAt,
	}, nil
}

func (s *AttemptService) purgeAttemptCache(ctx context.Context, attempt *model.Attempt) {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(attempt.ID.String()))
	pipe.Del(ctx, config.CacheKey.AttemptFlagsKey(attempt.ID.String()))
	pipe.Del(ctx, config.CacheKey.AttemptEndKey(attempt.ID.String()))
	pipe.Del(ctx, config.CacheKey.SubjectActiveAttemptKey(attempt.SubjectID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to purge attempt cache")
	}
}

// FinalizeOverdue force-finalizes in-progress attempts whose end plus the
// submission grace has passed with no client submission. Called by the sweep
// worker. Returns how many attempts were finalized.
func (s *AttemptService) FinalizeOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := s.attemptRepo.ListOverdue(ctx, s.cfg.SubmitGrace, limit)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	finalized := 0
	for i := range overdue {
		attempt := &overdue[i]

		responses, err := s.attemptRepo.ListAnswers(ctx, attempt.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Sweep: failed to load answers")
			continue
		}
		violations, err := s.attemptRepo.CountViolations(ctx, attempt.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Sweep: failed to count violations")
			continue
		}

		reason := model.SealReasonTimerExpired
		if _, err := s.finalize(ctx, attempt, responses, model.SubmissionKindLive, &reason, violations); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Sweep: finalize failed")
			continue
		}
		finalized++
	}
	return finalized, nil
}

func finalizedResult(attempt *model.Attempt) *model.SubmitResult {
	result := &model.SubmitResult{
		AttemptID: attempt.ID,
		Finalized: true,
	}
	if attempt.FinalScore != nil {
		result.Score = *attempt.FinalScore
	}
	if attempt.FinalizedAt != nil {
		result.FinalizedAt = *attempt.FinalizedAt
	}
	return result
}
