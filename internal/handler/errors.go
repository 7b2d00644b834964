package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"classattend/internal/attendance"
)

// writeError maps attendance errors to HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var closed *attendance.WindowClosedError
	switch {
	case errors.As(err, &closed):
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
			"phase": closed.Phase.String(),
			"start": closed.Start,
			"end":   closed.End,
		})
	case errors.Is(err, attendance.ErrNoActiveSession):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrWrongCode),
		errors.Is(err, attendance.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrInvalidRequest),
		errors.Is(err, attendance.ErrInvalidStatus),
		errors.Is(err, attendance.ErrInvalidTimeFormat),
		errors.Is(err, attendance.ErrInvalidTimeRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrStorageUnavailable):
		_ = c.Error(err)
		h.log.Error("storage failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attendance storage unavailable"})
	default:
		_ = c.Error(err)
		h.log.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
