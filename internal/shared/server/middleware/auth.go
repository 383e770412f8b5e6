package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"photoshoot-backend/internal/shared/auth"
	"photoshoot-backend/internal/shared/server/respond"
)

const userIDKey = "userId"

// TokenValidator verifies bearer tokens; implemented by auth.JWTService.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Auth requires a valid bearer token and stores the user ID in context.
func Auth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid authentication credentials", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid authentication credentials", nil)
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
