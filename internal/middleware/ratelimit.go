package middleware

import (
	"net/http"
	"strconv"
	"time"

	"learnhub/internal/metrics"
	"learnhub/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RateClass string

const (
	RateAuth            RateClass = "auth"
	RateRecommendations RateClass = "recommendations"
)

var rateMessages = map[RateClass]string{
	RateAuth:            "Too many login/signup attempts, try again later.",
	RateRecommendations: "Too many requests, try again later.",
}

// RateLimit counts requests per client IP within class. Store errors are
// logged and the request is let through.
func RateLimit(limiter *ratelimit.Limiter, class RateClass, log logrus.FieldLogger, m *metrics.Metrics) gin.HandlerFunc {
	message := rateMessages[class]
	if message == "" {
		message = "Too many requests, try again later."
	}
	limit := strconv.Itoa(limiter.Limit())

	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), string(class)+":"+c.ClientIP())
		if err != nil {
			log.WithError(err).WithField("class", class).Warn("rate limit store unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			m.RateLimited(string(class))
			retry := decision.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.Itoa(int(retry/time.Second)))
			c.String(http.StatusTooManyRequests, message)
			c.Abort()
			return
		}

		c.Next()
	}
}
