package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfs/agentfs/internal/infrastructure/monitoring"
)

// HandlerMetrics wraps handlers with metrics tracking
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil collector disables
// tracking without branching at every call site.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackFileOperation times one file-contract operation; the returned
// function records the outcome.
func (hm *HandlerMetrics) TrackFileOperation(op string) func(err error) {
	if hm.metrics == nil {
		return func(error) {}
	}
	timer := monitoring.NewTimer(hm.metrics, "fs", op)
	return func(err error) {
		if err != nil {
			hm.metrics.RecordBackendError("fs", op, errorKind(err))
			timer.Stop("error")
			return
		}
		timer.Stop("success")
	}
}

// MetricsJSON reports aggregate counters for dashboards
func (h *Handlers) MetricsJSON(c *gin.Context) {
	var snap monitoring.MetricsSnapshot
	if h.metrics != nil {
		snap = h.metrics.Snapshot()
	}

	avgSeconds := 0.0
	if snap.RequestCount > 0 {
		avgSeconds = snap.TotalDuration / float64(snap.RequestCount)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"metrics": gin.H{
			"total_requests":      snap.TotalRequests,
			"total_errors":        snap.TotalErrors,
			"active_sandboxes":    snap.ActiveSandboxes,
			"avg_request_seconds": avgSeconds,
		},
	})
}
