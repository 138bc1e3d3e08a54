package api

import (
	"github.com/RishiKendai/aegis-dupe/internal/config"
	"github.com/RishiKendai/aegis-dupe/internal/metrics"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.Default()

	handler := NewHandler(cfg, deps)
	rateLimiter := NewRateLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS*2))

	router.Use(RequestIDMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(ErrorHandlerMiddleware())

	router.GET("/health", handler.Health)

	api := router.Group("/api/v1")
	api.Use(RateLimitMiddleware(rateLimiter))
	{
		api.POST("/submissions", handler.AddSubmission)
		api.GET("/submissions/:id", handler.Submission)
		api.GET("/submissions/:id/similar", handler.Similar)

		api.POST("/scan", handler.Scan)
		api.GET("/scan/:scanId", handler.ScanStatus)
		api.GET("/reports", handler.Reports)
		api.GET("/reports/latest", handler.LatestReport)

		api.GET("/clusters", handler.Clusters)
		api.GET("/components", handler.Components)
		api.GET("/matrix", handler.Matrix)
		api.GET("/pairs", handler.Pairs)
		api.GET("/stats", handler.Stats)

		api.POST("/index/save", handler.SaveIndex)
	}

	return router
}
