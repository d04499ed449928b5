package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/repository"
)

// Domain Errors
var (
	ErrNoQuestions      = errors.New("exam has no questions, cannot publish")
	ErrExamNotDraft     = errors.New("exam status is not DRAFT")
	ErrExamNotPublished = errors.New("exam is not published")
)

// AnswerKeyEntry is one question's grading record as cached in Redis.
type AnswerKeyEntry struct {
	Type   model.QuestionType `json:"type"`
	Key    json.RawMessage    `json:"key"`
	Points float64            `json:"points"`
}

// CatalogService owns the exam catalog and its Redis caches: the taker-facing
// payload (answer keys stripped) and the grading key used at finalization.
type CatalogService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *CatalogService {
	return &CatalogService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "catalog_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *CatalogService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// Publish changes exam status to PUBLISHED and caches the payload + answer key
// in Redis. This is the critical path that populates the fast lane.
func (s *CatalogService) Publish(ctx context.Context, examID uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return nil
}

// WarmExamCache loads an exam's payload and answer key from PostgreSQL into
// Redis. Used by Publish and PrewarmAllCaches.
func (s *CatalogService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	// Build taker-facing payload (without answer keys).
	takerQuestions := make([]model.QuestionForTaker, len(questions))
	for i, q := range questions {
		takerQuestions[i] = model.QuestionForTaker{
			ID:           q.ID,
			Type:         q.Type,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			Points:       q.Points,
			OrderNum:     q.OrderNum,
		}
	}

	payload := model.ExamPayload{
		ExamID:            exam.ID,
		Title:             exam.Title,
		DurationMinutes:   exam.DurationMinutes,
		MaxViolations:     exam.MaxViolations,
		RequireFullscreen: exam.RequireFullscreen,
		Questions:         takerQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Build answer key hash for RAM grading.
	answerKey := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		entry, err := json.Marshal(AnswerKeyEntry{Type: q.Type, Key: q.AnswerKey, Points: q.Points})
		if err != nil {
			return fmt.Errorf("marshal key entry: %w", err)
		}
		answerKey[q.ID.String()] = entry
	}

	// Cache both atomically via pipeline.
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(exam.ID.String()), payloadJSON, 0)
	pipe.Del(ctx, config.CacheKey.ExamAnswerKey(exam.ID.String()))
	pipe.HSet(ctx, config.CacheKey.ExamAnswerKey(exam.ID.String()), answerKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
// This prevents any lazy-loading race conditions under thundering herd traffic.
func (s *CatalogService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming published exams...")

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// GetExamPayload retrieves the cached taker payload from Redis, falling back
// to PostgreSQL (with self-heal) on a cache miss.
func (s *CatalogService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("get payload: %w", err)
		}
		// Cache miss: rebuild from the source of truth.
		exam, dbErr := s.examRepo.GetByID(ctx, examID)
		if dbErr != nil {
			return nil, fmt.Errorf("payload not cached and exam lookup failed: %w", dbErr)
		}
		if exam.Status != model.ExamStatusPublished {
			return nil, ErrExamNotPublished
		}
		if warmErr := s.WarmExamCache(ctx, exam); warmErr != nil {
			return nil, warmErr
		}
		data, err = s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Bytes()
		if err != nil {
			return nil, fmt.Errorf("get payload after warm: %w", err)
		}
	}

	var payload model.ExamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// GetAnswerKey retrieves the grading key from Redis for instant scoring.
func (s *CatalogService) GetAnswerKey(ctx context.Context, examID uuid.UUID) (map[string]AnswerKeyEntry, error) {
	result, err := s.rdb.HGetAll(ctx, config.CacheKey.ExamAnswerKey(examID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) == 0 {
		// Same self-heal path as the payload.
		exam, dbErr := s.examRepo.GetByID(ctx, examID)
		if dbErr != nil {
			return nil, fmt.Errorf("answer key not cached and exam lookup failed: %w", dbErr)
		}
		if warmErr := s.WarmExamCache(ctx, exam); warmErr != nil {
			return nil, warmErr
		}
		result, err = s.rdb.HGetAll(ctx, config.CacheKey.ExamAnswerKey(examID.String())).Result()
		if err != nil || len(result) == 0 {
			return nil, errors.New("answer key not found in cache")
		}
	}

	key := make(map[string]AnswerKeyEntry, len(result))
	for qid, raw := range result {
		var entry AnswerKeyEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal key entry %s: %w", qid, err)
		}
		key[qid] = entry
	}
	return key, nil
}

// CreateExam inserts a new exam as DRAFT.
func (s *CatalogService) CreateExam(ctx context.Context, exam *model.Exam) error {
	exam.Status = model.ExamStatusDraft
	return s.examRepo.Create(ctx, exam)
}

// AddQuestion appends a question to a draft exam.
func (s *CatalogService) AddQuestion(ctx context.Context, q *model.Question) error {
	exam, err := s.examRepo.GetByID(ctx, q.ExamID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return s.questionRepo.Create(ctx, q)
}
