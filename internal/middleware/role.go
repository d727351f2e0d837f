package middleware

import (
	"net/http"

	"learnhub/internal/domain"
	"learnhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Authorize admits callers whose role is one of roles. It must run after
// Authenticate; reaching it without an identity means the chain was assembled
// wrong, which is reported as a server error rather than a client one.
func Authorize(log logrus.FieldLogger, roles ...domain.UserRole) gin.HandlerFunc {
	allowed := make(map[domain.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			log.WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.FullPath(),
			}).Error("authorize reached without an authenticated identity")
			response.Abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			return
		}

		if _, ok := allowed[domain.UserRole(identity.Role)]; !ok {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			return
		}

		c.Next()
	}
}
