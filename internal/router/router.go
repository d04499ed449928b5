package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/handler"
	"github.com/vigil-exam/vigil/internal/middleware"
	"github.com/vigil-exam/vigil/internal/response"
	"github.com/vigil-exam/vigil/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Attempt *handler.AttemptHandler
	Resume  *handler.ResumeHandler
	Catalog *handler.CatalogHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check and the client-side network probe. The probe must stay
	// cheap: no auth, no body, no DB.
	router.GET("/healthz", handlers.System.Health)
	router.GET("/api/v1/probe", handlers.System.Probe)
	router.HEAD("/api/v1/probe", handlers.System.Probe)

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/reviewer/login", handlers.Auth.ReviewerLogin)
		auth.GET("/me", middleware.RequireTakerJWT(authService), handlers.Auth.GetProfile)
	}

	// ─── 2. Attempt Start (Optional Auth for Guests) ───────────────────
	// Guests have no token yet; the handler issues one with the attempt.
	router.POST("/api/v1/exams/:exam_id/attempts",
		middleware.OptionalTakerJWT(authService),
		handlers.Attempt.StartAttempt,
	)

	// ─── 3. Attempt Group (Taker JWT) ──────────────────────────────────
	attempts := router.Group("/api/v1/attempts")
	attempts.Use(middleware.RequireTakerJWT(authService))
	{
		attempts.GET("/:attempt_id/state", handlers.Attempt.GetState)
		attempts.PUT("/:attempt_id/answers/:question_id", handlers.Attempt.SaveAnswer)
		attempts.POST("/:attempt_id/violations", handlers.Attempt.LogViolation)
		attempts.POST("/:attempt_id/submit", handlers.Attempt.SubmitLive)
		attempts.POST("/:attempt_id/submit-sealed", handlers.Attempt.SubmitSealed)
		attempts.POST("/:attempt_id/beacon", handlers.Attempt.Beacon)
		attempts.POST("/:attempt_id/resume-requests", handlers.Resume.CreateRequest)
	}

	// ─── 4. WebSocket Group (Taker WS Auth) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireTakerWSAuth(authService))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 5. Review Group (Reviewer JWT) ────────────────────────────────
	review := router.Group("/api/v1/review")
	review.Use(middleware.RequireReviewerJWT(authService))
	{
		review.GET("/resume-requests", handlers.Resume.ListPending)
		review.POST("/resume-requests/:request_id/approve", handlers.Resume.Approve)
		review.POST("/resume-requests/:request_id/decline", handlers.Resume.Decline)
		review.GET("/system/metrics", handlers.System.SystemMetricsSSE)

		review.POST("/exams", handlers.Catalog.CreateExam)
		review.POST("/exams/:exam_id/questions", handlers.Catalog.AddQuestion)
		review.POST("/exams/:exam_id/publish", handlers.Catalog.PublishExam)
	}

	return router
}
