package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/memora-health/memora-api/pkg/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message}
}

// RespondError writes err's public message with the status of its code.
// Errors that are not AppErrors are reported as internal. The full error is
// attached to the context for the error logger.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternal(err)
	}
	c.AbortWithStatusJSON(appErr.Code.HTTPStatus(), NewErrorResponse(appErr.Message))
}
