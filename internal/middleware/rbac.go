package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-correction-api/internal/models"
	appErrors "github.com/noah-isme/sma-correction-api/pkg/errors"
	"github.com/noah-isme/sma-correction-api/pkg/response"
)

// RequirePrivileged blocks decision routes for non-privileged roles.
func RequirePrivileged() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || !claims.Role.Privileged() {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
