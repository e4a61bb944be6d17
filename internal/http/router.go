package http

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.ngs.io/harmonic/internal/usecase"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(analysisUC *usecase.AnalysisUseCase, predictionUC *usecase.PredictionUseCase) *gin.Engine {

	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable.
	// Default to allow all origins if not specified.
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}

	router.Use(cors.New(corsConfig))

	// Create handler.
	handler := NewHandler(analysisUC, predictionUC)

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.POST("/analyze", handler.Analyze)
	v1.POST("/predict", handler.Predict)
	v1.GET("/constituents", handler.GetConstituents)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	// Prometheus metrics.
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
