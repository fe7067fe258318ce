package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentfs/agentfs/internal/backend/memory"
	"github.com/agentfs/agentfs/internal/backend/sandbox"
	"github.com/agentfs/agentfs/internal/infrastructure/monitoring"
)

// One collector per test binary: metrics register with the global
// prometheus registry.
var testMetrics = monitoring.NewMetrics()

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr := sandbox.NewManager(sandbox.Config{Timeout: 10 * time.Second}, zap.NewNop())
	t.Cleanup(mgr.CloseAll)

	h := NewHandlers(memory.New(), mgr, testMetrics, zap.NewNop())

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/metrics/json", h.MetricsJSON)
	v1 := r.Group("/v1")
	v1.GET("/fs/list", h.List)
	v1.GET("/fs/read", h.Read)
	v1.POST("/fs/write", h.Write)
	v1.POST("/fs/edit", h.Edit)
	v1.GET("/fs/glob", h.Glob)
	v1.GET("/fs/grep", h.Grep)
	v1.POST("/sandboxes", h.CreateSandbox)
	v1.GET("/sandboxes", h.ListSandboxes)
	v1.POST("/sandboxes/:id/execute", h.ExecuteInSandbox)
	v1.DELETE("/sandboxes/:id", h.StopSandbox)
	return r
}

func do(t *testing.T, r *gin.Engine, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	return w, parsed
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w, body := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestWriteReadRoundtrip(t *testing.T) {
	r := newTestRouter(t)

	w, _ := do(t, r, http.MethodPost, "/v1/fs/write", map[string]any{
		"path":    "/notes.txt",
		"content": "hello",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := do(t, r, http.MethodGet, "/v1/fs/read?path=/notes.txt", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1\thello", body["content"])
}

func TestReadMissingFile(t *testing.T) {
	r := newTestRouter(t)
	w, body := do(t, r, http.MethodGet, "/v1/fs/read?path=/absent.txt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestReadRejectsTraversal(t *testing.T) {
	r := newTestRouter(t)
	w, _ := do(t, r, http.MethodGet, "/v1/fs/read?path=/../etc/passwd", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadRejectsBadOffset(t *testing.T) {
	r := newTestRouter(t)
	w, _ := do(t, r, http.MethodGet, "/v1/fs/read?path=/x&offset=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditAmbiguousConflict(t *testing.T) {
	r := newTestRouter(t)
	do(t, r, http.MethodPost, "/v1/fs/write", map[string]any{
		"path":    "/app.py",
		"content": "x = 1\nx = 1",
	})

	w, body := do(t, r, http.MethodPost, "/v1/fs/edit", map[string]any{
		"path":       "/app.py",
		"old_string": "x = 1",
		"new_string": "x = 2",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, body["error"], "appears 2 times")
}

func TestEditReplaceAll(t *testing.T) {
	r := newTestRouter(t)
	do(t, r, http.MethodPost, "/v1/fs/write", map[string]any{
		"path":    "/app.py",
		"content": "x = 1\nx = 1",
	})

	w, body := do(t, r, http.MethodPost, "/v1/fs/edit", map[string]any{
		"path":        "/app.py",
		"old_string":  "x = 1",
		"new_string":  "x = 2",
		"replace_all": true,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["occurrences"])
}

func TestGlobRequiresPattern(t *testing.T) {
	r := newTestRouter(t)
	w, _ := do(t, r, http.MethodGet, "/v1/fs/glob", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGlob(t *testing.T) {
	r := newTestRouter(t)
	do(t, r, http.MethodPost, "/v1/fs/write", map[string]any{"path": "/src/a.go", "content": "a"})
	do(t, r, http.MethodPost, "/v1/fs/write", map[string]any{"path": "/src/b.txt", "content": "b"})

	w, body := do(t, r, http.MethodGet, "/v1/fs/glob?pattern=**/*.go", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "/src/a.go", entries[0].(map[string]any)["path"])
}

func TestGrepBadPattern(t *testing.T) {
	r := newTestRouter(t)
	w, _ := do(t, r, http.MethodGet, "/v1/fs/grep?pattern=%5B", nil) // "["
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGrep(t *testing.T) {
	r := newTestRouter(t)
	do(t, r, http.MethodPost, "/v1/fs/write", map[string]any{
		"path":    "/main.go",
		"content": "package main\nfunc main() {}",
	})

	w, body := do(t, r, http.MethodGet, "/v1/fs/grep?pattern=func+main", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	matches := body["matches"].([]any)
	require.Len(t, matches, 1)
	m := matches[0].(map[string]any)
	assert.Equal(t, "/main.go", m["path"])
	assert.Equal(t, float64(2), m["line"])
}

func TestSandboxLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w, body := do(t, r, http.MethodPost, "/v1/sandboxes", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	sid := body["id"].(string)
	assert.Contains(t, sid, "sbx_")

	w, body = do(t, r, http.MethodPost, "/v1/sandboxes/"+sid+"/execute", map[string]any{
		"command": "echo hi",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["output"], "hi")
	assert.Equal(t, float64(0), body["exit_code"])

	w, _ = do(t, r, http.MethodDelete, "/v1/sandboxes/"+sid, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Gone after stop
	w, _ = do(t, r, http.MethodPost, "/v1/sandboxes/"+sid+"/execute", map[string]any{
		"command": "echo hi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestFileOperationMetricsRecorded(t *testing.T) {
	r := newTestRouter(t)

	successBefore := counterValue(t, testMetrics.BackendOps.WithLabelValues("fs", "write", "success"))
	errorBefore := counterValue(t, testMetrics.BackendErrors.WithLabelValues("fs", "read", "not_found"))

	w, _ := do(t, r, http.MethodPost, "/v1/fs/write", map[string]any{
		"path":    "/tracked.txt",
		"content": "x",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodGet, "/v1/fs/read?path=/absent.txt", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, successBefore+1,
		counterValue(t, testMetrics.BackendOps.WithLabelValues("fs", "write", "success")))
	assert.Equal(t, errorBefore+1,
		counterValue(t, testMetrics.BackendErrors.WithLabelValues("fs", "read", "not_found")))
}

func TestMetricsJSON(t *testing.T) {
	r := newTestRouter(t)

	w, body := do(t, r, http.MethodGet, "/metrics/json", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	metrics := body["metrics"].(map[string]any)
	assert.Contains(t, metrics, "total_requests")
	assert.Contains(t, metrics, "active_sandboxes")
}

func TestExecuteUnknownSandbox(t *testing.T) {
	r := newTestRouter(t)
	w, _ := do(t, r, http.MethodPost, "/v1/sandboxes/sbx_nope/execute", map[string]any{
		"command": "true",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSandboxes(t *testing.T) {
	r := newTestRouter(t)

	_, body := do(t, r, http.MethodGet, "/v1/sandboxes", nil)
	assert.Empty(t, body["sandboxes"])

	_, created := do(t, r, http.MethodPost, "/v1/sandboxes", nil)
	sid := created["id"].(string)

	_, body = do(t, r, http.MethodGet, "/v1/sandboxes", nil)
	ids := body["sandboxes"].([]any)
	require.Len(t, ids, 1)
	assert.Equal(t, sid, ids[0])
}
