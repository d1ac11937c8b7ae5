package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blitzwolfz/aion-terminal/internal/domain/terminal"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/shell"
	"github.com/blitzwolfz/aion-terminal/internal/shared/utils"
)

var errUnavailable = errors.New("service unavailable")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrInvalid), errors.Is(err, shell.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, terminal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, terminal.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, terminal.ErrShutdown), errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, terminal.ErrIO):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
