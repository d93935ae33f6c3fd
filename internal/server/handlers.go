package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ajsharma/neon_playground/internal/bridge"
	"github.com/ajsharma/neon_playground/internal/compose"
	"github.com/ajsharma/neon_playground/internal/config"
	"github.com/ajsharma/neon_playground/internal/sandbox"
)

// runResponse is the body returned by POST /api/run.
type runResponse struct {
	Entries     []bridge.Entry `json:"entries"`
	HTML        []string       `json:"html"`
	Title       string         `json:"title"`
	Scripts     int            `json:"scripts"`
	Timers      int            `json:"timers"`
	Errors      int            `json:"errors"`
	Dropped     int64          `json:"dropped"`
	Interrupted bool           `json:"interrupted"`
	DurationMS  int64          `json:"duration_ms"`
}

func (s *Server) bindSources(c *gin.Context) (compose.SourceSet, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSourceBytes)

	var set compose.SourceSet
	if err := c.ShouldBindJSON(&set); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source set: " + err.Error()})
		return set, false
	}
	return set, true
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"version": config.Version,
	}
	if sr, ok := s.runner.(statsReporter); ok {
		body["pool"] = sr.Stats()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStarter(c *gin.Context) {
	c.JSON(http.StatusOK, compose.Starter)
}

func (s *Server) handleSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"auto_run":          s.config.AutoRun,
		"render_delay_ms":   s.config.RenderDelay.Milliseconds(),
		"indicator_fade_ms": s.config.IndicatorFade.Milliseconds(),
		"file_names":        compose.FileNames,
		"export_file_name":  compose.ExportFileName,
	})
}

func (s *Server) handleCompose(c *gin.Context) {
	set, ok := s.bindSources(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, compose.ExportMIMEType+"; charset=utf-8", []byte(set.Compose()))
}

func (s *Server) handleExport(c *gin.Context) {
	set, ok := s.bindSources(c)
	if !ok {
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+compose.ExportFileName+`"`)
	c.Header("Content-Type", compose.ExportMIMEType)
	c.Status(http.StatusOK)
	if err := compose.Export(c.Writer, set); err != nil {
		s.logger.Warn("Failed to write export", zap.Error(err))
	}
}

func (s *Server) handleRun(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sandbox runner is not configured"})
		return
	}

	set, ok := s.bindSources(c)
	if !ok {
		return
	}

	receiver := bridge.NewReceiver(nil)
	unsubscribe := receiver.Log().Subscribe(s.metrics.RecordEntry)
	defer unsubscribe()

	start := time.Now()
	result, err := s.runner.Run(c.Request.Context(), set.Compose(), receiver.Post)
	s.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	s.metrics.RecordRender(config.SurfaceSandbox, err)
	s.metrics.DroppedMessages.Add(float64(receiver.Dropped()))

	interrupted := errors.Is(err, sandbox.ErrInterrupted)
	if err != nil && !interrupted {
		s.logger.Error("Sandbox run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entries := receiver.Log().Entries()
	resp := runResponse{
		Entries:     entries,
		HTML:        make([]string, len(entries)),
		Dropped:     receiver.Dropped(),
		Interrupted: interrupted,
	}
	for i, e := range entries {
		resp.HTML[i] = bridge.RenderHTML(e)
	}
	if result != nil {
		resp.Title = result.Title
		resp.Scripts = result.Scripts
		resp.Timers = result.Timers
		resp.Errors = len(result.Errors)
		resp.DurationMS = result.Duration.Milliseconds()
	}

	c.JSON(http.StatusOK, resp)
}
