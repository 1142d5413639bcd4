package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	apperrors "github.com/memora-health/memora-api/pkg/errors"
)

// BindJSON decodes the request body into obj. An empty body leaves obj as is
// so that field validation reports what is missing.
func BindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindWith(obj, binding.JSON); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.NewBadRequest("Invalid request body", err)
	}
	return nil
}
