package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentfs/agentfs/internal/backend"
	"github.com/agentfs/agentfs/internal/backend/sandbox"
	"github.com/agentfs/agentfs/internal/infrastructure/monitoring"
)

// Handlers exposes the file contract and sandbox lifecycle over HTTP.
type Handlers struct {
	backend   backend.Backend
	sandboxes *sandbox.Manager
	metrics   *monitoring.Metrics
	tracker   *HandlerMetrics
	logger    *zap.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(b backend.Backend, sandboxes *sandbox.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		backend:   b,
		sandboxes: sandboxes,
		metrics:   metrics,
		tracker:   NewHandlerMetrics(metrics),
		logger:    logger,
	}
}

// Root returns service identity
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "agentfs",
		"status":  "running",
	})
}

// Health returns service health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"sandboxes": h.sandboxes.Count(),
	})
}

// List returns the direct children of a directory
func (h *Handlers) List(c *gin.Context) {
	path := c.DefaultQuery("path", "/")

	done := h.tracker.TrackFileOperation("list")
	entries, err := h.backend.List(c.Request.Context(), path)
	done(err)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": entries,
	})
}

// Read returns numbered lines from a file
func (h *Handlers) Read(c *gin.Context) {
	path := c.Query("path")
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", backend.DefaultReadLimit)
	if !ok {
		return
	}

	done := h.tracker.TrackFileOperation("read")
	content, err := h.backend.Read(c.Request.Context(), path, offset, limit)
	done(err)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    path,
		"content": content,
	})
}

// Write replaces the full content of a file
func (h *Handlers) Write(c *gin.Context) {
	var req struct {
		Path    string `json:"path" binding:"required"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	done := h.tracker.TrackFileOperation("write")
	result, err := h.backend.Write(c.Request.Context(), req.Path, req.Content)
	done(err)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    result.Path,
	})
}

// Edit substitutes a string within a file
func (h *Handlers) Edit(c *gin.Context) {
	var req struct {
		Path       string `json:"path" binding:"required"`
		OldString  string `json:"old_string" binding:"required"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	done := h.tracker.TrackFileOperation("edit")
	result, err := h.backend.Edit(c.Request.Context(), req.Path, req.OldString, req.NewString, req.ReplaceAll)
	done(err)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"path":        result.Path,
		"occurrences": result.Occurrences,
	})
}

// Glob returns files matching a shell-glob pattern
func (h *Handlers) Glob(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "pattern parameter required",
		})
		return
	}
	path := c.DefaultQuery("path", "/")

	done := h.tracker.TrackFileOperation("glob")
	entries, err := h.backend.Glob(c.Request.Context(), pattern, path)
	done(err)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": entries,
	})
}

// Grep searches file contents with a regular expression
func (h *Handlers) Grep(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "pattern parameter required",
		})
		return
	}
	path := c.DefaultQuery("path", "/")
	fileGlob := c.Query("glob")

	done := h.tracker.TrackFileOperation("grep")
	matches, err := h.backend.Grep(c.Request.Context(), pattern, path, fileGlob)
	done(err)
	if err != nil {
		fail(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.AddSearchMatches(len(matches))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"matches": matches,
	})
}

func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid " + name + " parameter",
		})
		return 0, false
	}
	return v, true
}
