package middleware

import (
	"net/http"
	"strings"

	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextRole     = "role"
	contextIdentity = "identity"
)

// Authenticate verifies the bearer access token and attaches the caller's
// identity. A missing or malformed header is 401; a token that fails
// verification for any reason is 403.
func Authenticate(verifier jwt.AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header must be 'Bearer <token>'")
			return
		}

		identity, err := verifier.VerifyAccess(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Abort(c, http.StatusForbidden, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set(contextIdentity, identity)
		c.Set(ContextUserID, identity.ID)
		c.Set(ContextRole, identity.Role)
		c.Next()
	}
}

// CurrentIdentity returns the identity attached by Authenticate.
func CurrentIdentity(c *gin.Context) (*jwt.Identity, bool) {
	v, ok := c.Get(contextIdentity)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*jwt.Identity)
	return identity, ok && identity != nil
}
