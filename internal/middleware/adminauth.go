package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminAuth guards the tenant administration surface with a bcrypt-hashed
// token. An empty hash disables the surface entirely rather than leaving
// it open.
func AdminAuth(tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenHash == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Admin interface disabled",
			})
			c.Abort()
			return
		}

		token := strings.TrimSpace(c.GetHeader(AdminTokenHeader))
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Admin token required",
			})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid admin token",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
