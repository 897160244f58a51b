package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/dictation/auth"
	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/logger"
)

// IdentityAuthenticator resolves a bearer token to a user.
type IdentityAuthenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// Auth requires an Authorization: Bearer token and stores the resolved
// auth.Identity in the request context.
func Auth(authn IdentityAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		id, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			appErr, ok := apperrors.AsAppError(err)
			if !ok {
				appErr = apperrors.Internal(err)
			}
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}

		ctx := auth.WithIdentity(c.Request.Context(), id)
		ctx = logger.WithValue(ctx, logger.FieldUserID, id.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	return auth.IdentityFrom(c.Request.Context())
}
