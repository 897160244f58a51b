package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/dictation/logger"
)

// HeaderRequestID is the request id header, echoed on every response.
const HeaderRequestID = "X-Request-Id"

// RequestID reuses or generates a request id and stores it on the gin
// context and the request context for logger.WithContext.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(logger.FieldRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(logger.WithValue(c.Request.Context(), logger.FieldRequestID, id))
		c.Next()
	}
}
