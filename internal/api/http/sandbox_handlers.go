package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateSandbox starts a new isolated environment
func (h *Handlers) CreateSandbox(c *gin.Context) {
	e, err := h.sandboxes.Create(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncSandboxesTotal()
		h.metrics.SetSandboxesActive(h.sandboxes.Count())
	}
	h.logger.Info("sandbox created", zap.String("id", e.ID()))

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      e.ID(),
	})
}

// ListSandboxes returns the IDs of live environments
func (h *Handlers) ListSandboxes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sandboxes": h.sandboxes.IDs(),
	})
}

// ExecuteInSandbox runs a shell command inside an environment
func (h *Handlers) ExecuteInSandbox(c *gin.Context) {
	e, err := h.sandboxes.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	var req struct {
		Command        string `json:"command" binding:"required"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	result, err := e.Execute(c.Request.Context(), req.Command, timeout)
	if err != nil {
		fail(c, err)
		return
	}

	outcome := "completed"
	if result.ExitCode == nil {
		outcome = "timeout"
	}
	if h.metrics != nil {
		h.metrics.RecordExecution(outcome, result.Duration)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"output":           result.Output,
		"exit_code":        result.ExitCode,
		"truncated":        result.Truncated,
		"duration_seconds": result.Duration.Seconds(),
	})
}

// StopSandbox releases an environment
func (h *Handlers) StopSandbox(c *gin.Context) {
	idParam := c.Param("id")
	if err := h.sandboxes.Stop(idParam); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if h.metrics != nil {
		h.metrics.SetSandboxesActive(h.sandboxes.Count())
	}
	h.logger.Info("sandbox stopped", zap.String("id", idParam))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}
