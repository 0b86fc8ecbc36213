package middleware

import (
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/utils"

	"github.com/gin-gonic/gin"
)

// AdminAuth requires a bearer JWT with the admin role signed with secret.
// An empty secret leaves the routes open, for single-host deployments.
func AdminAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		logger.Warn("CW_ADMIN_JWT_SECRET not set, admin and GPU routes are unauthenticated")
	}
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(tokenString, secret)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}
		if claims.Role != utils.RoleAdmin {
			utils.RespondWithForbidden(c, "Admin role required")
			c.Abort()
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
