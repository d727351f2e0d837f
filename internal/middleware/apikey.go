package middleware

import (
	"crypto/subtle"
	"net/http"

	"learnhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// APIKeyParam is the query parameter carrying the shared service key.
const APIKeyParam = "apiKey"

// APIKey protects service-to-service endpoints with a static shared key.
func APIKey(expected string) gin.HandlerFunc {
	want := []byte(expected)
	return func(c *gin.Context) {
		got := c.Query(APIKeyParam)
		if expected == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			response.Abort(c, http.StatusForbidden, "INVALID_API_KEY", "Invalid API Key")
			return
		}
		c.Next()
	}
}
