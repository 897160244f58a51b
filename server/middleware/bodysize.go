package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/dictation/errors"
)

// BodySizeLimit rejects requests that declare a body over maxBytes with a
// 413 and caps the rest, so chunked uploads fail on read past the limit.
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	tooLarge := apperrors.New(apperrors.ErrCodeInvalidInput,
		fmt.Sprintf("Request body exceeds the %d byte limit.", maxBytes), http.StatusRequestEntityTooLarge)

	return func(c *gin.Context) {
		switch {
		case maxBytes <= 0 || c.Request.Body == nil:
		case c.Request.ContentLength > maxBytes:
			c.AbortWithStatusJSON(tooLarge.HTTPStatus, tooLarge.ToResponse())
			return
		default:
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
