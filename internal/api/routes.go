package api

import (
	"github.com/gin-gonic/gin"

	"github.com/stratevolve/stratevolve/internal/metrics"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		runGroup := v1.Group("/runs")
		{
			runGroup.POST("", s.handleStartRun)
			runGroup.GET("", s.handleListRuns)
			runGroup.GET("/:id", s.handlePollRun)
			runGroup.POST("/:id/stop", s.handleStopRun)
			runGroup.DELETE("/:id", s.handleRemoveRun)
		}
	}

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.router.GET("/", s.handleRoot)
}
