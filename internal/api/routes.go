package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/jobs", handler.UploadFile)
		v1.GET("/jobs/:job_id/status", handler.GetJobStatus)
		v1.GET("/jobs/:job_id/issues", handler.ListIssues)
		v1.POST("/jobs/:job_id/reprocess", handler.TriggerReprocess)
		v1.POST("/jobs/:job_id/rows/:staging_id/discard", handler.DiscardRow)
	}
}
