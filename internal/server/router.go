package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/voicenotes-backend/internal/handlers"
	"github.com/yungbote/voicenotes-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware   *middleware.AuthMiddleware
	IngestionHandler *handlers.IngestionHandler
	TaskHandler      *handlers.TaskHandler
	StickyHandler    *handlers.StickyHandler
	Registry         *prometheus.Registry
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", middleware.OwnerHeader},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	if cfg.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireOwner())
	// Ingestions
	api.POST("/ingestions", cfg.IngestionHandler.Upload)
	api.POST("/ingestions/text", cfg.IngestionHandler.SubmitText)
	api.GET("/ingestions", cfg.IngestionHandler.List)
	api.GET("/ingestions/:id/status", cfg.IngestionHandler.Status)
	api.GET("/ingestions/:id/transcript", cfg.IngestionHandler.Transcript)
	// Tasks
	api.POST("/tasks/extract", cfg.TaskHandler.Extract)
	api.GET("/tasks", cfg.TaskHandler.List)
	api.GET("/tasks/:id", cfg.TaskHandler.Get)
	api.PATCH("/tasks/:id", cfg.TaskHandler.Update)
	api.DELETE("/tasks/:id", cfg.TaskHandler.Delete)
	// Stickies
	api.POST("/stickies/generate", cfg.StickyHandler.Generate)
	api.GET("/stickies", cfg.StickyHandler.List)
	api.GET("/stickies/domains", cfg.StickyHandler.Domains)
	api.POST("/stickies/domains/combine", cfg.StickyHandler.CombineDomains)

	return router
}
