package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

// errorKind names the taxonomy class of err; used for metrics labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		return "validation"
	case errors.Is(err, usecase.ErrNotFound):
		return "not_found"
	case errors.Is(err, usecase.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, usecase.ErrConflict):
		return "conflict"
	case errors.Is(err, usecase.ErrForbidden):
		return "forbidden"
	case errors.Is(err, usecase.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, usecase.ErrGateway):
		return "gateway"
	default:
		return "internal"
	}
}

// writeError maps usecase errors to status codes. Client errors carry the
// message; server errors are logged and answered with a generic body.
func writeError(c *gin.Context, err error) {
	switch errorKind(err) {
	case "validation", "invalid_signature":
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case "not_found":
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case "duplicate":
		c.JSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
	case "conflict":
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case "forbidden":
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case "gateway":
		logging.From(c).Error("payment processor call failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment processor error"})
	default:
		logging.From(c).Error("request failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
