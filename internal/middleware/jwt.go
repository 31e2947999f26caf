package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/escena-local/directory/internal/auth"
	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
// Websocket upgrades may pass the token as ?token= since browsers cannot set headers there.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearer(c)
		if token == "" {
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT sets user claims when a valid token is present and lets anonymous requests through.
func OptionalJWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, _ := bearer(c); token != "" {
			if claims, err := jwtService.Validate(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func bearer(c *gin.Context) (token, problem string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if c.IsWebsocket() {
			if t := c.Query("token"); t != "" {
				return t, ""
			}
		}
		return "", "missing authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "invalid authorization header"
	}
	return parts[1], ""
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
	c.Set(ContextUserEmail, claims.Email)
}

// UserID returns the authenticated user's ID.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Role returns the authenticated user's role, or "" for anonymous requests.
func Role(c *gin.Context) models.Role {
	v, _ := c.Get(ContextUserRole)
	r, _ := v.(models.Role)
	return r
}
