package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/attempt-engine/internal/cache"
	"github.com/SAP-F-2025/attempt-engine/internal/config"
	"github.com/SAP-F-2025/attempt-engine/internal/grading"
	"github.com/SAP-F-2025/attempt-engine/internal/handlers"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/repositories/postgres"
	"github.com/SAP-F-2025/attempt-engine/internal/sandbox"
	"github.com/SAP-F-2025/attempt-engine/internal/services"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
	"github.com/SAP-F-2025/attempt-engine/pkg"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := utils.NewBaseLogger(os.Stdout, cfg.IsProduction())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := pkg.Migrate(db); err != nil {
		return err
	}

	redisClient, err := pkg.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	sandboxCache := cache.NewRedisCache(redisClient, "attempt-engine", logger)
	judge := sandbox.NewClient(sandbox.Config{
		BaseURL:      cfg.Sandbox.URL,
		APIKey:       cfg.Sandbox.APIKey,
		AuthHeader:   cfg.Sandbox.AuthHeader,
		PollInterval: cfg.Sandbox.PollInterval,
		Timeout:      cfg.Sandbox.Timeout,
		Logger:       logger,
	})

	validator := utils.NewValidator()
	deps := services.SessionDeps{
		Questions: postgres.NewCachedQuestionSource(
			postgres.NewQuestionPostgreSQL(db), sandboxCache, cfg.Cache.QuestionTTL, logger),
		Assessments: postgres.NewAssessmentPostgreSQL(db),
		Lifecycle: services.NewAttemptLifecycle(
			postgres.NewAttemptPostgreSQL(db), logger,
			services.WithCallTimeout(cfg.Sessions.StoreTimeout)),
		Grader:    grading.NewGrader(logger),
		Runner:    sandbox.NewCachedRunner(judge, sandboxCache, cfg.Cache.SandboxTTL, logger),
		Publisher: publisher,
		Logger:    logger,
		Validator: validator,
	}

	manager := services.NewSessionManager(deps, cfg.Sessions.Retention,
		services.WithCompletionHook(func(session *services.Session, scorePercent int, answers models.AnswerSheet) {
			logger.Info("Session completed",
				"session_id", session.ID,
				"student_id", session.StudentID,
				"assessment_id", session.AssessmentID,
				"score", scorePercent,
				"answers", len(answers))
		}))
	go manager.Run(ctx, cfg.Sessions.ReapInterval)
	defer manager.Shutdown()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handlerLogger := utils.NewSlogLogger(logger)
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.LoggerMiddleware(handlerLogger))

	var tokens handlers.TokenParser
	if cfg.Casdoor.Enabled() {
		tokens = handlers.NewCasdoorTokenParser(cfg.Casdoor)
	} else {
		logger.Warn("Casdoor is not configured, trusting the X-Student-ID header")
	}
	handlers.NewHandlerManager(manager, validator, tokens, handlerLogger).SetupRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
