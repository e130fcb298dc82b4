package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/st3v1n/SchoolManager/internal/config"
	"github.com/st3v1n/SchoolManager/internal/handler"
	"github.com/st3v1n/SchoolManager/internal/middleware"
	"github.com/st3v1n/SchoolManager/internal/response"
	"github.com/st3v1n/SchoolManager/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	Catalog *handler.CatalogHandler
	Results *handler.ResultsHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Every response carries request metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Student group (JWT).
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.GET("/exams", handlers.Catalog.ListOpenExams)
		studentAPI.POST("/exams/:exam_id/attempt", handlers.Attempt.StartOrResume)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)
		studentAPI.POST("/attempts/:attempt_id/ping", handlers.Attempt.Heartbeat)
		studentAPI.GET("/attempts/:attempt_id/state", handlers.Attempt.State)
		studentAPI.GET("/attempts/:attempt_id/results", handlers.Results.GetResult)
		studentAPI.GET("/results", handlers.Results.ListResults)
	}

	return router
}
