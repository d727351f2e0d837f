package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"learnhub/internal/metrics"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/ratelimit"
	"learnhub/internal/pkg/rbac"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Access declares what a route requires. The zero value is a public route.
type Access struct {
	Capability rbac.Capability
	APIKey     bool
	RateClass  RateClass
}

// Route is one entry of a service's route table.
type Route struct {
	Method  string
	Path    string
	Access  Access
	Handler gin.HandlerFunc
}

// Guard holds everything needed to turn an Access declaration into middleware.
type Guard struct {
	Verifier jwt.AccessVerifier
	Matrix   *rbac.Matrix
	APIKey   string
	Limiters map[RateClass]*ratelimit.Limiter
	Log      logrus.FieldLogger
	Metrics  *metrics.Metrics
}

// Mount validates every route against the guard and registers them on r.
// Nothing is registered if any route is invalid.
func Mount(r gin.IRoutes, g Guard, routes []Route) error {
	if g.Log == nil {
		g.Log = logrus.StandardLogger()
	}

	chains := make([][]gin.HandlerFunc, len(routes))
	seen := make(map[string]struct{}, len(routes))
	var errs []error

	for i, rt := range routes {
		key := rt.Method + " " + rt.Path
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("%s: declared twice", key))
			continue
		}
		seen[key] = struct{}{}

		chain, err := g.chain(rt)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		chains[i] = chain
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid route table: %w", errors.Join(errs...))
	}

	for i, rt := range routes {
		r.Handle(rt.Method, rt.Path, chains[i]...)
	}
	return nil
}

// chain assembles RateLimit, Authenticate, Authorize, APIKey and the handler
// in that order, skipping the stages the route does not ask for.
func (g Guard) chain(rt Route) ([]gin.HandlerFunc, error) {
	if rt.Handler == nil {
		return nil, errors.New("missing handler")
	}
	switch rt.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil, fmt.Errorf("unsupported method %q", rt.Method)
	}

	var chain []gin.HandlerFunc
	a := rt.Access

	if a.RateClass != "" {
		limiter, ok := g.Limiters[a.RateClass]
		if !ok || limiter == nil {
			return nil, fmt.Errorf("unknown rate class %q", a.RateClass)
		}
		chain = append(chain, RateLimit(limiter, a.RateClass, g.Log, g.Metrics))
	}

	if a.Capability != "" {
		if g.Verifier == nil || g.Matrix == nil {
			return nil, errors.New("capability declared but no verifier or matrix configured")
		}
		if !g.Matrix.Known(a.Capability) {
			return nil, fmt.Errorf("unknown capability %q", a.Capability)
		}
		chain = append(chain,
			Authenticate(g.Verifier),
			Authorize(g.Log, g.Matrix.RolesFor(a.Capability)...),
		)
	}

	if a.APIKey {
		if g.APIKey == "" {
			return nil, errors.New("api key required but none configured")
		}
		chain = append(chain, APIKey(g.APIKey))
	}

	return append(chain, rt.Handler), nil
}
