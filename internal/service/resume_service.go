package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/repository"
)

// Domain Errors
var (
	ErrResumeNotEligible = errors.New("attempt is not eligible for a resume request")
	ErrResumeNotPending  = errors.New("resume request has already been decided")
)

// ResumeService mediates the instructor resume handshake: takers file a
// request after a gap, reviewers decide it, and the decision is pushed to the
// waiting session over Redis pub/sub.
type ResumeService struct {
	cfg         *config.Config
	resumeRepo  *repository.ResumeRepository
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewResumeService creates a new ResumeService.
func NewResumeService(
	cfg *config.Config,
	resumeRepo *repository.ResumeRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ResumeService {
	return &ResumeService{
		cfg:         cfg,
		resumeRepo:  resumeRepo,
		attemptRepo: attemptRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "resume_service").Logger(),
	}
}

// Create files a resume request for an interrupted attempt. Idempotent: if a
// pending request already exists for the attempt, its ticket is returned
// instead of an error, so a retrying client never double-files.
func (s *ResumeService) Create(ctx context.Context, attemptID, subjectID uuid.UUID, requesterName string) (*model.ResumeTicket, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.SubjectID != subjectID {
		return nil, ErrNotYourAttempt
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrResumeNotEligible
	}

	rr := &model.ResumeRequest{
		AttemptID:     attemptID,
		RequesterName: requesterName,
		ExpiresAt:     time.Now().Add(s.cfg.ResumeTTL),
	}
	if err := s.resumeRepo.Create(ctx, rr); err != nil {
		if errors.Is(err, repository.ErrResumeAlreadyPending) {
			existing, fetchErr := s.resumeRepo.GetPendingByAttempt(ctx, attemptID)
			if fetchErr != nil {
				return nil, fmt.Errorf("pending request exists, fetch failed: %w", fetchErr)
			}
			return &model.ResumeTicket{RequestID: existing.ID, ExpiresAt: existing.ExpiresAt}, nil
		}
		return nil, fmt.Errorf("create resume request: %w", err)
	}

	s.log.Info().
		Str("request_id", rr.ID.String()).
		Str("attempt_id", attemptID.String()).
		Msg("Resume request filed")

	return &model.ResumeTicket{RequestID: rr.ID, ExpiresAt: rr.ExpiresAt}, nil
}

// ListPending returns one page of the reviewer queue, oldest request first,
// together with the queue's total size.
func (s *ResumeService) ListPending(ctx context.Context, page, perPage int) ([]model.ResumeRequest, int, error) {
	requests, err := s.resumeRepo.ListPending(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.resumeRepo.CountPending(ctx)
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// Decide resolves a pending request exactly once. Approval extends the
// attempt's end so the granted remaining time is authoritative server-side,
// then the decision event is published to the waiting session. A second
// decide on the same request gets ErrResumeNotPending.
func (s *ResumeService) Decide(
	ctx context.Context,
	requestID uuid.UUID,
	approve bool,
	decision model.ResumeDecisionRequest,
) (*model.ResumeRequest, error) {
	rr, err := s.resumeRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get resume request: %w", err)
	}
	if rr.Status != model.ResumeStatusPending {
		return nil, ErrResumeNotPending
	}

	status := model.ResumeStatusDeclined
	var granted *int
	if approve {
		status = model.ResumeStatusApproved
		granted = &decision.TimeRemainingSeconds
	}

	decidedAt, err := s.resumeRepo.Decide(ctx, requestID, status, decision.Reason, granted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResumeNotPending
		}
		return nil, fmt.Errorf("decide resume request: %w", err)
	}

	if approve {
		newEnd := decidedAt.Add(time.Duration(decision.TimeRemainingSeconds) * time.Second)
		if err := s.attemptRepo.ExtendEnd(ctx, rr.AttemptID, newEnd); err != nil {
			return nil, fmt.Errorf("extend attempt end: %w", err)
		}
		_ = s.rdb.Set(ctx, config.CacheKey.AttemptEndKey(rr.AttemptID.String()), newEnd.Unix(), 0).Err()
	}

	event := model.ResumeEvent{RequestID: requestID, Reason: decision.Reason}
	if approve {
		event.Kind = model.ResumeEventApproved
		event.TimeRemainingSeconds = decision.TimeRemainingSeconds
	} else {
		event.Kind = model.ResumeEventDeclined
	}
	s.publish(ctx, event)

	rr.Status = status
	rr.DecidedAt = &decidedAt
	rr.DecisionReason = decision.Reason
	rr.GrantedSeconds = granted

	s.log.Info().
		Str("request_id", requestID.String()).
		Str("status", string(status)).
		Msg("Resume request decided")

	return rr, nil
}

// ExpireOverdue flips pending requests past their deadline to expired and
// publishes the expiry events. Called by the sweep worker. Sessions also run
// their own local countdown, so a missed event only costs the push.
func (s *ResumeService) ExpireOverdue(ctx context.Context) (int, error) {
	ids, err := s.resumeRepo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("expire overdue: %w", err)
	}
	for _, id := range ids {
		s.publish(ctx, model.ResumeEvent{RequestID: id, Kind: model.ResumeEventExpired})
	}
	return len(ids), nil
}

func (s *ResumeService) publish(ctx context.Context, event model.ResumeEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal resume event")
		return
	}
	channel := config.CacheKey.ResumeChannel(event.RequestID.String())
	if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		s.log.Warn().
			Err(err).
			Str("request_id", event.RequestID.String()).
			Msg("Failed to publish resume event")
	}
}
