package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/stratevolve/stratevolve/internal/runs"
	"github.com/stratevolve/stratevolve/pkg/backtest"
	"github.com/stratevolve/stratevolve/pkg/ledger"
	"github.com/stratevolve/stratevolve/pkg/optimize"
)

var startTime = time.Now()

// MarketWindow names a tick history to load instead of shipping it inline
type MarketWindow struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// StartRunRequest is the payload of POST /api/v1/runs. Price history comes
// either inline as ticks or as a market window for the configured loader.
type StartRunRequest struct {
	Monitor    backtest.MonitorConfig   `json:"monitor"`
	Engine     *optimize.EngineConfig   `json:"engine,omitempty"`
	Objectives []optimize.ObjectiveSpec `json:"objectives,omitempty"`
	Ticks      []ledger.Tick            `json:"ticks,omitempty"`
	Window     *MarketWindow            `json:"window,omitempty"`
}

// handleStartRun starts an optimization run and returns its handle
func (s *Server) handleStartRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	engineCfg := optimize.DefaultEngineConfig()
	if req.Engine != nil {
		engineCfg = *req.Engine
	}

	ticks := req.Ticks
	if len(ticks) == 0 && req.Window != nil {
		if s.loader == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no market loader configured, supply ticks inline"})
			return
		}
		loaded, err := s.loader.Load(c.Request.Context(), req.Window.Symbol, req.Window.Interval, req.Window.Start, req.Window.End)
		if err != nil {
			log.Error().Err(err).Str("symbol", req.Window.Symbol).Msg("Failed to load tick history")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load price history: " + err.Error()})
			return
		}
		ticks = loaded
	}
	if len(ticks) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no price history: supply ticks or a market window"})
		return
	}

	id, err := s.manager.Start(engineCfg, &req.Monitor, req.Objectives, ticks)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":     id,
		"status": "started",
	})
}

// handlePollRun returns the latest generation report for a run
func (s *Server) handlePollRun(c *gin.Context) {
	status, err := s.manager.Poll(c.Param("id"))
	if err != nil {
		s.runError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// handleListRuns returns the status of every known run
func (s *Server) handleListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.manager.List()})
}

// handleStopRun requests termination at the next generation boundary
func (s *Server) handleStopRun(c *gin.Context) {
	if err := s.manager.Stop(c.Param("id")); err != nil {
		s.runError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
}

// handleRemoveRun forgets a finished run
func (s *Server) handleRemoveRun(c *gin.Context) {
	if err := s.manager.Remove(c.Param("id")); err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			s.runError(c, err)
		} else {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) runError(c *gin.Context, err error) {
	if errors.Is(err, runs.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// handleHealth is the liveness endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startTime).Seconds(),
	})
}

// handleRoot describes the service
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "StratEvolve API",
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}
