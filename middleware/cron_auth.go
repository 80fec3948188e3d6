package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CronAuth guards refresh triggers with a shared bearer secret. An empty
// configured secret fails closed: the route stays registered but every
// caller gets a 401 until CRON_SECRET is set.
func CronAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		log.Println("CronAuth: no secret configured, refresh trigger is disabled")
	}
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "refresh trigger is not configured"})
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}
