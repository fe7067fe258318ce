package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfs/agentfs/internal/backend"
)

// statusFor maps backend errors to HTTP status codes.
func statusFor(err error) int {
	var badPattern *backend.BadPatternError
	switch {
	case errors.Is(err, backend.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.As(err, &badPattern):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrNoMatch):
		return http.StatusConflict
	case errors.Is(err, backend.ErrAmbiguousMatch):
		return http.StatusConflict
	case errors.Is(err, backend.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, backend.ErrSandboxClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// errorKind labels an error for the metrics error counter.
func errorKind(err error) string {
	var badPattern *backend.BadPatternError
	switch {
	case errors.Is(err, backend.ErrInvalidPath):
		return "invalid_path"
	case errors.As(err, &badPattern):
		return "bad_pattern"
	case errors.Is(err, backend.ErrNotFound):
		return "not_found"
	case errors.Is(err, backend.ErrNoMatch):
		return "no_match"
	case errors.Is(err, backend.ErrAmbiguousMatch):
		return "ambiguous_match"
	case errors.Is(err, backend.ErrBusy):
		return "busy"
	case errors.Is(err, backend.ErrSandboxClosed):
		return "sandbox_closed"
	default:
		return "internal"
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
