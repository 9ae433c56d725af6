package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solidariza/backend/internal/auth"
	"github.com/solidariza/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextSuperuser is set to true for network administrators.
	ContextSuperuser = "is_superuser"
	// ContextOrganizationID is the active organization the request acts for.
	ContextOrganizationID = "organization_id"

	// HeaderOrganization lets a network administrator pick the active organization.
	HeaderOrganization = "X-Organization-ID"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
// The active organization is the token's organization; superusers may
// override it with the X-Organization-ID header.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextSuperuser, claims.IsSuperuser)

		if claims.OrganizationID != nil {
			c.Set(ContextOrganizationID, *claims.OrganizationID)
		}
		if override := c.GetHeader(HeaderOrganization); override != "" && claims.IsSuperuser {
			orgID, err := uuid.Parse(override)
			if err != nil {
				response.BadRequest(c, "invalid "+HeaderOrganization)
				c.Abort()
				return
			}
			c.Set(ContextOrganizationID, orgID)
		}
		c.Next()
	}
}

// RequireOrganization rejects requests without an active organization.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := OrganizationID(c); !ok {
			response.Forbidden(c, "no active organization")
			c.Abort()
			return
		}
		c.Next()
	}
}

// OrganizationID returns the active organization, if any.
func OrganizationID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextOrganizationID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// UserID returns the acting user. Call only behind JWT.
func UserID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextUserID).(uuid.UUID)
}

// IsSuperuser reports whether the caller is a network administrator.
func IsSuperuser(c *gin.Context) bool {
	return c.GetBool(ContextSuperuser)
}
