package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"file-manager-api/internal/infrastructure/jwt"
)

const (
	CtxClientID = "clientID"
	CtxScope    = "scope"
)

// AuthMiddleware admits Bearer tokens signed with the service secret that
// carry scope; an empty scope only checks the signature.
func AuthMiddleware(jwtService *jwt.Service, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				gin.H{"error": "missing Authorization header"},
			)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				gin.H{"error": "invalid token format"},
			)
			return
		}

		claims, err := jwtService.ValidateToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				gin.H{"error": "invalid token"},
			)
			return
		}
		if scope != "" && !claims.HasScope(scope) {
			c.AbortWithStatusJSON(
				http.StatusForbidden,
				gin.H{"error": "insufficient scope"},
			)
			return
		}

		c.Set(CtxClientID, claims.ClientID)
		c.Set(CtxScope, claims.Scope)

		c.Next()
	}
}
