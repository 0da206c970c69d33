package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// MetricsAuthMiddleware guards the metrics endpoint with the
// X-Internal-API-Key header when METRICS_API_KEY is set. Without the env
// var the endpoint stays open, the expected deployment on a private
// network.
func MetricsAuthMiddleware() gin.HandlerFunc {
	apiKey := os.Getenv("METRICS_API_KEY")
	if apiKey == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	apiKeyBytes := []byte(apiKey)

	return func(c *gin.Context) {
		key := c.GetHeader("X-Internal-API-Key")
		// Use subtle.ConstantTimeCompare to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(key), apiKeyBytes) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}
