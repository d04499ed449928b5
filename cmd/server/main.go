package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/database"
	"github.com/vigil-exam/vigil/internal/handler"
	"github.com/vigil-exam/vigil/internal/logger"
	"github.com/vigil-exam/vigil/internal/repository"
	"github.com/vigil-exam/vigil/internal/router"
	"github.com/vigil-exam/vigil/internal/service"
	"github.com/vigil-exam/vigil/internal/validator"
	"github.com/vigil-exam/vigil/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Vigil record server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	subjectRepo := repository.NewSubjectRepository(pool)
	reviewerRepo := repository.NewReviewerRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	resumeRepo := repository.NewResumeRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	subjectService := service.NewSubjectService(subjectRepo)
	reviewerService := service.NewReviewerService(reviewerRepo)
	catalogService := service.NewCatalogService(examRepo, questionRepo, rdb, log)
	attemptService := service.NewAttemptService(cfg, attemptRepo, subjectRepo, catalogService, rdb, log)
	resumeService := service.NewResumeService(cfg, resumeRepo, attemptRepo, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, subjectService, reviewerService),
		Attempt: handler.NewAttemptHandler(attemptService, subjectService, authService),
		Resume:  handler.NewResumeHandler(resumeService),
		Catalog: handler.NewCatalogHandler(catalogService, authService),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerLogWorker(pool, rdb, log)
	violationWorker := worker.NewViolationWorker(pool, rdb, log)
	beaconWorker := worker.NewBeaconWorker(pool, rdb, log)
	sweepWorker := worker.NewSweepWorker(attemptService, resumeService, log)

	go answerWorker.Start(workerCtx)
	go violationWorker.Start(workerCtx)
	go beaconWorker.Start(workerCtx)
	go sweepWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exams into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := catalogService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
