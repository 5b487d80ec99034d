package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gstledger/internal/core/apperror"
	"gstledger/internal/infrastructure/http/v1/dto"
	"gstledger/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		WriteError(c, c.Errors.Last().Err)
	}
}

// WriteError renders err as the API error body.
func WriteError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	if appErr, ok := apperror.AsAppError(err); ok {
		switch {
		case appErr.HTTPStatus >= http.StatusInternalServerError:
			logger.Error(ctx, "request failed",
				"code", appErr.Code,
				"details", appErr.Details,
				"cause", appErr.Err,
			)
		case appErr.Err != nil:
			logger.Warn(ctx, "request rejected",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}

		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		c.AbortWithStatusJSON(status, dto.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	// Unknown error - log and return generic message
	logger.Error(ctx, "unhandled error", "error", err)

	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
		Code:    apperror.CodeInternal,
		Message: "Internal server error",
		Details: map[string]any{
			"request_id": c.GetString("request_id"),
		},
	})
}
