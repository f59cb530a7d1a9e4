package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/farmlens/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger.Named("access")))
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/", handler.Root)
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	maxBody := cfg.Image.MaxBytes * 2
	if maxBody <= 0 {
		maxBody = 20 << 20
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	v1.Use(AuthMiddleware(cfg.Auth.JWTSecret))
	v1.Use(BodyLimitMiddleware(maxBody))
	{
		capture := v1.Group("/capture")
		{
			capture.POST("/weight", handler.CaptureWeight)
			capture.GET("/weight", handler.ListCaptures)
			capture.GET("/weight/:id", handler.GetCapture)
			capture.POST("/classify", handler.Classify)
		}

		analytics := v1.Group("/analytics")
		{
			analytics.GET("/status", handler.AnalyticsStatus)
			analytics.POST("/csv", handler.AnalyzeCSV)
			analytics.POST("/image", handler.AnalyzeImage)
			analytics.POST("/generate", handler.GenerateAnalytics)
		}

		creao := v1.Group("/creao")
		{
			creao.POST("/analytics", handler.GenerateAnalytics)
			creao.POST("/analyze-produce", handler.SuggestListing)
			creao.POST("/bulk-upload", handler.BulkUpload)
		}

		v1.POST("/data/send", handler.SendData)

		farmers := v1.Group("/farmers")
		{
			farmers.GET("", handler.ListFarmers)
			farmers.GET("/:id/data", handler.GetFarmerData)
			farmers.GET("/:id/dashboard", handler.Dashboard)
			farmers.DELETE("/:id", handler.DeleteFarmer)
		}
	}

	ws := router.Group("/ws")
	ws.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	ws.Use(AuthMiddleware(cfg.Auth.JWTSecret))
	{
		ws.GET("/stream", handler.Stream)
	}

	return router
}
