package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"gopherai-study/internal/app"
	"gopherai-study/internal/transport/http/middleware"
	"gopherai-study/internal/transport/http/response"
)

// getUserIDFromContext returns the authenticated caller, or nil for an
// anonymous request.
func getUserIDFromContext(c *gin.Context) *uint {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return nil
	}
	userID, ok := userIDAny.(uint)
	if !ok || userID == 0 {
		return nil
	}
	return &userID
}

// writeServiceError maps service errors onto the response envelope. fallback
// is the message for failures the caller should not see the details of.
func writeServiceError(c *gin.Context, err error, fallback string) {
	var insufficient *app.InsufficientContentError
	switch {
	case errors.As(err, &insufficient):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, response.CodeInsufficientContent, err.Error(), gin.H{
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrNoContent):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrStorageUnavailable):
		logutil.GetLogger(c.Request.Context()).Warn(fallback, zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, response.CodeRetryable, "storage unavailable, retry later")
	case errors.Is(err, app.ErrGenerationUnavailable):
		logutil.GetLogger(c.Request.Context()).Warn(fallback, zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, response.CodeRetryable, "question generation unavailable, retry later")
	default:
		logutil.GetLogger(c.Request.Context()).Error(fallback, zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
