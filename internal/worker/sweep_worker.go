package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/vigil-exam/vigil/internal/service"
)

const (
	SweepInterval  = 30 * time.Second
	SweepBatchSize = 100
)

// SweepWorker periodically finalizes attempts whose submission window has
// closed without a client submission, and expires overdue resume requests.
// Everything it does is idempotent, so running alongside live submissions is
// safe: whichever path finalizes first wins.
type SweepWorker struct {
	attempts *service.AttemptService
	resumes  *service.ResumeService
	log      zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(attempts *service.AttemptService, resumes *service.ResumeService, log zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		attempts: attempts,
		resumes:  resumes,
		log:      log.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start begins the ticker loop. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SweepWorker started")

	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("SweepWorker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	finalized, err := w.attempts.FinalizeOverdue(ctx, SweepBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("Overdue attempt sweep failed")
	} else if finalized > 0 {
		w.log.Info().Int("count", finalized).Msg("Force-finalized overdue attempts")
	}

	expired, err := w.resumes.ExpireOverdue(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Resume expiry sweep failed")
	} else if expired > 0 {
		w.log.Info().Int("count", expired).Msg("Expired overdue resume requests")
	}
}
