// Package app assembles the user and course services from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"learnhub/internal/clients/userservice"
	"learnhub/internal/config"
	"learnhub/internal/metrics"
	"learnhub/internal/middleware"
	"learnhub/internal/modules/auth"
	"learnhub/internal/modules/course"
	"learnhub/internal/modules/user"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/ratelimit"
	"learnhub/internal/pkg/rbac"
	"learnhub/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// App is a built service: its router plus whatever must be released on exit.
type App struct {
	Router  *gin.Engine
	Metrics *metrics.Metrics

	closers []func() error
}

// Close stops background work and releases the rate-limit store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Option func(*options)

type options struct {
	tokenOpts []jwt.Option
	store     ratelimit.Store
}

// WithTokenOptions passes options (such as a clock) to token issuing and
// verification.
func WithTokenOptions(opts ...jwt.Option) Option {
	return func(o *options) { o.tokenOpts = append(o.tokenOpts, opts...) }
}

// WithRateStore replaces the store chosen from config.
func WithRateStore(store ratelimit.Store) Option {
	return func(o *options) { o.store = store }
}

// BuildUserService wires login, refresh, logout, registration and user
// management onto one router.
func BuildUserService(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logrus.Logger, opts ...Option) (*App, error) {
	o := buildOptions(opts)

	tokens, err := jwt.New(jwt.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
	}, o.tokenOpts...)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	a := &App{Metrics: metrics.New(config.ServiceUser)}
	limiters, err := a.newLimiters(ctx, cfg, config.ServiceUser, o, map[middleware.RateClass]int{
		middleware.RateAuth: cfg.Guard.AuthRateLimit,
	}, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)

	authHandler := auth.NewHandler(
		auth.NewService(users, tokens, cfg.Token.RefreshPepper, a.Metrics),
		auth.CookieOptions{
			Name:     cfg.Cookie.Name,
			Path:     cfg.Cookie.Path,
			Secure:   cfg.Cookie.Secure,
			SameSite: sameSite(cfg.Cookie.SameSite),
		},
		log,
	)
	userHandler := user.NewHandler(user.NewService(users, courses), log)

	if a.Router, err = newEngine(config.ServiceUser, cfg, log, a.Metrics); err != nil {
		_ = a.Close()
		return nil, err
	}
	routes := append(authHandler.Routes(), userHandler.Routes()...)
	if err := middleware.Mount(a.Router, middleware.Guard{
		Verifier: tokens,
		Matrix:   rbac.Default(),
		APIKey:   cfg.Guard.APIKey,
		Limiters: limiters,
		Log:      log,
		Metrics:  a.Metrics,
	}, routes); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// BuildCourseService wires the course routes. Identity comes only from
// verifying access tokens with the shared secret; teacher details come from
// the user service.
func BuildCourseService(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logrus.Logger, opts ...Option) (*App, error) {
	o := buildOptions(opts)
	a := &App{Metrics: metrics.New(config.ServiceCourse)}

	directory, err := userservice.New(userservice.Config{
		BaseURL:  cfg.Upstream.UserServiceURL,
		APIKey:   cfg.Guard.APIKey,
		Timeout:  cfg.Upstream.Timeout,
		CacheTTL: cfg.Upstream.TeacherCacheTTL,
	}, a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("user service client: %w", err)
	}

	svc, err := course.NewService(repository.NewCourseRepository(db), directory, log)
	if err != nil {
		return nil, err
	}

	limiters, err := a.newLimiters(ctx, cfg, config.ServiceCourse, o, map[middleware.RateClass]int{
		middleware.RateRecommendations: cfg.Guard.RecommendationsRateLimit,
	}, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	if a.Router, err = newEngine(config.ServiceCourse, cfg, log, a.Metrics); err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := middleware.Mount(a.Router, middleware.Guard{
		Verifier: jwt.NewVerifier(cfg.Token.AccessSecret, o.tokenOpts...),
		Matrix:   rbac.Default(),
		APIKey:   cfg.Guard.APIKey,
		Limiters: limiters,
		Log:      log,
		Metrics:  a.Metrics,
	}, course.NewHandler(svc, log).Routes()); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Run serves handler on addr until ctx is cancelled, then drains in-flight
// requests.
func Run(ctx context.Context, addr string, handler http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// newEngine builds the shared router. Only peers listed in TRUSTED_PROXIES may
// set the client IP through forwarding headers; the rate limiter keys on it.
func newEngine(service string, cfg *config.Config, log *logrus.Logger, m *metrics.Metrics) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(
		middleware.RequestID(),
		middleware.ErrorLogger(log),
		middleware.RequestLogger(log),
		m.Middleware(),
		middleware.CORS(cfg.AllowedOrigins),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))
	return r, nil
}

// newLimiters builds one limiter per class over a single store: Redis when
// REDIS_URL is set, otherwise process memory with a background sweeper.
func (a *App) newLimiters(
	ctx context.Context,
	cfg *config.Config,
	service string,
	o options,
	classes map[middleware.RateClass]int,
	log logrus.FieldLogger,
) (map[middleware.RateClass]*ratelimit.Limiter, error) {
	store := o.store
	switch {
	case store != nil:
	case cfg.Guard.RedisURL != "":
		rs, err := ratelimit.NewRedisStoreFromURL(ctx, cfg.Guard.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		log.Info("rate limiting with redis store")
		store = rs
	default:
		ms := ratelimit.NewMemoryStore()
		sweepCtx, cancel := context.WithCancel(ctx)
		ms.StartCleanup(sweepCtx, cfg.Guard.RateLimitWindow)
		a.closers = append(a.closers, func() error { cancel(); return nil })
		store = ms
	}

	limiters := make(map[middleware.RateClass]*ratelimit.Limiter, len(classes))
	for class, limit := range classes {
		l, err := ratelimit.New(store, limit, cfg.Guard.RateLimitWindow, "rl:"+service)
		if err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", class, err)
		}
		limiters[class] = l
	}
	return limiters, nil
}

func sameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
