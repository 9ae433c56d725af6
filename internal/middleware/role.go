package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
// Superusers always pass.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if IsSuperuser(c) {
			c.Next()
			return
		}
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[models.Role(role)]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireManager allows ADMIN and MANAGER collaborators.
func RequireManager() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleManager)
}

// RequireSuperuser allows only network administrators.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsSuperuser(c) {
			response.Forbidden(c, "network administrator only")
			c.Abort()
			return
		}
		c.Next()
	}
}
