package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/vocab-runner/internal/config"
	"github.com/stemsi/vocab-runner/internal/handler"
	"github.com/stemsi/vocab-runner/internal/middleware"
	"github.com/stemsi/vocab-runner/internal/response"
	"github.com/stemsi/vocab-runner/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Trainer *handler.TrainerHandler
	Speech  *handler.SpeechHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	sessions *service.SessionService,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "sessions": sessions.Count()})
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)

	// ─── 1. REST API (Token + Rate Limit) ──────────────────────────────
	api := router.Group("/api/v1")
	api.Use(
		middleware.RequireToken(authService),
		limiter.Middleware(),
		middleware.NoStore(),
		middleware.Brotli(),
	)
	{
		trainers := api.Group("/trainers/:trainer_id")
		{
			trainers.GET("/launch", handlers.Trainer.GetLaunch)
			trainers.POST("/sessions", handlers.Session.StartSession)
			trainers.GET("/result", handlers.Trainer.GetResult)
			trainers.DELETE("/result", handlers.Trainer.AcknowledgeResult)
		}

		api.POST("/vocabs/generate", handlers.Trainer.Generate)

		sessionAPI := api.Group("/sessions/:session_id")
		sessionAPI.Use(middleware.RequireSessionOwner(sessions))
		{
			sessionAPI.GET("", handlers.Session.GetSession)
			sessionAPI.DELETE("", handlers.Session.Discard)
			sessionAPI.POST("/next", handlers.Session.Next)
			sessionAPI.POST("/previous", handlers.Session.Previous)
			sessionAPI.PUT("/answer", handlers.Session.Answer)
			sessionAPI.POST("/flip", handlers.Session.Flip)
			sessionAPI.PUT("/assessment", handlers.Session.Assess)
			sessionAPI.GET("/speech", handlers.Speech.Speak)
			sessionAPI.POST("/recording/start", handlers.Session.StartRecording)
			sessionAPI.POST("/recording/pause", handlers.Session.PauseRecording)
			sessionAPI.POST("/recording/resume", handlers.Session.ResumeRecording)
			sessionAPI.POST("/recording/stop", handlers.Session.StopRecording)
			sessionAPI.DELETE("/recording", handlers.Session.RecordAgain)
			sessionAPI.POST("/submit", handlers.Session.Submit)
			sessionAPI.POST("/complete", handlers.Session.Complete)
		}
	}

	// ─── 2. WebSocket (Token via ?token=) ──────────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireToken(authService))
	{
		wsGroup.GET("/sessions/:session_id/stream",
			middleware.RequireSessionOwner(sessions),
			handlers.WS.SessionStream,
		)
	}

	return router
}
