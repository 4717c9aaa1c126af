package api

import (
	"errors"
	"net/http"
	"strconv"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
	actorKey       = "actor"
)

// actorMiddleware reads the caller asserted by the auth gateway. Requests
// without a known role are rejected before reaching a handler.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := models.ParseRole(c.GetHeader(headerUserRole))
		if !ok {
			abortUnauthorized(c, "missing or unknown "+headerUserRole)
			return
		}

		id, err := strconv.ParseInt(c.GetHeader(headerUserID), 10, 64)
		if err != nil || id <= 0 {
			abortUnauthorized(c, "missing or invalid "+headerUserID)
			return
		}

		c.Set(actorKey, service.Actor{ID: id, Role: role})
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   string(apperr.KindUnauthorized),
		"message": msg,
	})
}

func actorFrom(c *gin.Context) service.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(service.Actor); ok {
			return actor
		}
	}
	return service.Actor{}
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindInvalidInput:      http.StatusBadRequest,
	apperr.KindInsufficientStock: http.StatusConflict,
	apperr.KindForbidden:         http.StatusForbidden,
	apperr.KindProtectedEntity:   http.StatusForbidden,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindAlreadyDeleted:    http.StatusConflict,
	apperr.KindNotDeleted:        http.StatusConflict,
	apperr.KindBusy:              http.StatusServiceUnavailable,
	apperr.KindUnavailable:       http.StatusServiceUnavailable,
	apperr.KindUnauthorized:      http.StatusUnauthorized,
}

// respondError writes {"error": kind, "message": text} with the kind's status
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if kind == apperr.KindBusy {
		c.Header("Retry-After", "1")
	}

	msg := apperr.Message(err)
	if status == http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			msg = "internal error"
		}
	}

	c.JSON(status, gin.H{
		"error":   string(kind),
		"message": msg,
	})
}
