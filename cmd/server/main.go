package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/config"
	"github.com/stemsi/vocab-runner/internal/database"
	"github.com/stemsi/vocab-runner/internal/handler"
	"github.com/stemsi/vocab-runner/internal/logger"
	"github.com/stemsi/vocab-runner/internal/router"
	"github.com/stemsi/vocab-runner/internal/service"
	"github.com/stemsi/vocab-runner/internal/store"
	"github.com/stemsi/vocab-runner/internal/validator"
	"github.com/stemsi/vocab-runner/internal/worker"
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
		Str("api", cfg.APIBaseURL).
		Str("storage", cfg.StorageDriver).
		Msg("Starting vocab exam runner")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	// Redis carries session events and the evaluation job queue whatever
	// the storage driver is.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Connect to PostgreSQL (postgres storage only) ────────────────
	pool, err := database.OpenStoragePool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	if pool != nil {
		defer pool.Close()
	}

	st, err := store.Open(cfg, rdb, pool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client storage")
	}

	// ─── Remote API ────────────────────────────────────────────────────
	api := apiclient.NewClient(cfg.APIBaseURL, cfg.UploadURL, cfg.FetchTimeout, log)

	// ─── Initialize Services ──────────────────────────────────────────
	bus := service.NewRedisEventBus(rdb)
	jobWorker := worker.NewJobWorker(rdb, api, st, cfg.JobPollDelay, log)

	authService := service.NewAuthService(cfg)
	sessionService := service.NewSessionService(cfg, api, st, bus, jobWorker, log)
	launchService := service.NewLaunchService(sessionService)
	resultService := service.NewResultService(sessionService, api, log)
	generateService := service.NewGenerateService(sessionService, api, log)
	speechService, err := service.NewSpeechService(ctx, cfg.TTSEnabled, sessionService, log)
	if err != nil {
		log.Warn().Err(err).Msg("Text-to-speech unavailable, pronunciation disabled")
		speechService = service.NewSpeechServiceWith(sessionService, nil, log)
	}
	defer speechService.Close()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService),
		Trainer: handler.NewTrainerHandler(launchService, resultService, generateService),
		Speech:  handler.NewSpeechHandler(speechService),
		WS:      handler.NewWSHandler(sessionService, bus, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	go jobWorker.Start(workerCtx)
	go sessionService.RunSweeper(workerCtx, time.Minute)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, sessionService, handlers, cfg)

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

	// 2. Release timers and microphones of running sessions.
	sessionService.Shutdown()

	// 3. Stop background workers. Queued jobs stay in Redis for the next start.
	workerCancel()
	time.Sleep(time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
