package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kevingruber/blob-proxy/internal/config"
)

// BasicAuth creates a middleware that validates HTTP Basic Authentication
// against the configured users and records the authenticated username and
// role on the request context.
func BasicAuth(users []config.UserAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="Blob Proxy"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		for _, user := range users {
			if username == user.Username &&
				subtle.ConstantTimeCompare([]byte(password), []byte(user.Password)) == 1 {
				c.Set("username", user.Username)
				c.Set("role", user.Role)
				c.Next()
				return
			}
		}

		c.Header("WWW-Authenticate", `Basic realm="Blob Proxy"`)
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

// RequireRole aborts with 403 unless the authenticated user carries the
// given role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if got, exists := c.Get("role"); !exists || got.(string) != role {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
