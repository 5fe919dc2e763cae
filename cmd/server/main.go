package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yungbote/voicenotes-backend/internal/db"
	"github.com/yungbote/voicenotes-backend/internal/extraction"
	"github.com/yungbote/voicenotes-backend/internal/handlers"
	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/metrics"
	"github.com/yungbote/voicenotes-backend/internal/middleware"
	"github.com/yungbote/voicenotes-backend/internal/repos"
	"github.com/yungbote/voicenotes-backend/internal/server"
	"github.com/yungbote/voicenotes-backend/internal/services"
	"github.com/yungbote/voicenotes-backend/internal/transcoder"
	"github.com/yungbote/voicenotes-backend/internal/transcription"
	"github.com/yungbote/voicenotes-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	workDir := utils.GetEnv("INGEST_WORK_DIR", os.TempDir(), log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Metrics
	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(registry)

	// Repos
	log.Info("Setting up Repos from main...")
	ingestionRepo := repos.NewIngestionRepo(thePG, log)
	taskRepo := repos.NewTaskRepo(thePG, log)
	stickyRepo := repos.NewStickyRepo(thePG, log)

	// Audio tooling
	audioTranscoder := transcoder.New(log)
	if err := audioTranscoder.AssertReady(context.Background()); err != nil {
		log.Error("ffmpeg/ffprobe not usable", "error", err)
		os.Exit(1)
	}

	// External clients
	sttClient, err := transcription.NewClient(log, appMetrics)
	if err != nil {
		log.Error("Could not init transcription client", "error", err)
		os.Exit(1)
	}
	llmClient, err := extraction.NewLLMClient(log)
	if err != nil {
		log.Error("Could not init LLM client", "error", err)
		os.Exit(1)
	}
	engine := extraction.NewEngine(log, llmClient, appMetrics)

	// Services
	log.Info("Setting up Services from main...")
	ingestionService := services.NewIngestionService(log, ingestionRepo, audioTranscoder, sttClient, appMetrics, workDir)
	taskService := services.NewTaskService(log, taskRepo, engine)
	stickyService := services.NewStickyService(log, stickyRepo, engine)

	// Handlers
	log.Info("Setting up handlers from main...")
	ingestionHandler := handlers.NewIngestionHandler(log, ingestionService)
	taskHandler := handlers.NewTaskHandler(log, taskService)
	stickyHandler := handlers.NewStickyHandler(log, stickyService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:   authMiddleware,
		IngestionHandler: ingestionHandler,
		TaskHandler:      taskHandler,
		StickyHandler:    stickyHandler,
		Registry:         registry,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
