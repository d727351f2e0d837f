package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ServiceUser   = "user"
	ServiceCourse = "course"
)

const (
	defaultAccessTTL          = "15m"
	defaultRefreshTTL         = "168h"
	defaultAccessSecret       = "change-me-access-secret"
	defaultRefreshSecret      = "change-me-refresh-secret"
	defaultRefreshPepper      = "change-me-refresh-pepper"
	defaultAPIKey             = "change-me-api-key"
	defaultCookieName         = "jwt"
	defaultCookiePath         = "/"
	defaultCookieSecure       = "true"
	defaultCookieSameSite     = "None"
	defaultAuthRateLimit      = "5"
	defaultRecommendRateLimit = "10"
	defaultRateLimitWindow    = "1m"
	defaultUserServiceURL     = "http://localhost:4000"
	defaultUserServiceTimeout = "2s"
	defaultTeacherCacheTTL    = "5m"
	defaultDatabaseURL        = "learnhub.db"
)

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RefreshPepper string
}

type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	SameSite string
}

type GuardConfig struct {
	APIKey                   string
	AuthRateLimit            int
	RecommendationsRateLimit int
	RateLimitWindow          time.Duration
	RedisURL                 string
}

type UpstreamConfig struct {
	UserServiceURL  string
	Timeout         time.Duration
	TeacherCacheTTL time.Duration
}

type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	LogLevel       string
	AllowedOrigins []string
	// TrustedProxies lists the peers (IPs or CIDRs) whose X-Forwarded-For is
	// believed. Empty means the client IP is always the socket peer.
	TrustedProxies []string

	Token    TokenConfig
	Cookie   CookieConfig
	Guard    GuardConfig
	Upstream UpstreamConfig
}

// Load reads an optional .env file and the process environment. defaultPort
// differs per service.
func Load(defaultPort string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)
	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", "info"))
	cfg.AllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))

	cfg.Token.AccessSecret = strings.TrimSpace(getEnv("ACCESS_TOKEN_SECRET", defaultAccessSecret))
	cfg.Token.RefreshSecret = strings.TrimSpace(getEnv("REFRESH_TOKEN_SECRET", defaultRefreshSecret))
	cfg.Token.RefreshPepper = strings.TrimSpace(getEnv("REFRESH_TOKEN_PEPPER", defaultRefreshPepper))

	cfg.Cookie.Name = strings.TrimSpace(getEnv("COOKIE_NAME", defaultCookieName))
	cfg.Cookie.Path = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))
	cfg.Cookie.Secure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.Cookie.SameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite))

	cfg.Guard.APIKey = strings.TrimSpace(getEnv("API_KEY", defaultAPIKey))
	cfg.Guard.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.Upstream.UserServiceURL = strings.TrimRight(strings.TrimSpace(getEnv("USER_SERVICE_URL", defaultUserServiceURL)), "/")

	var err error
	if cfg.Token.AccessTTL, err = parseDurationEnv("ACCESS_TOKEN_TTL", defaultAccessTTL); err != nil {
		return nil, err
	}
	if cfg.Token.RefreshTTL, err = parseDurationEnv("REFRESH_TOKEN_TTL", defaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.Guard.RateLimitWindow, err = parseDurationEnv("RATE_LIMIT_WINDOW", defaultRateLimitWindow); err != nil {
		return nil, err
	}
	if cfg.Guard.AuthRateLimit, err = parseIntEnv("AUTH_RATE_LIMIT", defaultAuthRateLimit); err != nil {
		return nil, err
	}
	if cfg.Guard.RecommendationsRateLimit, err = parseIntEnv("RECOMMENDATIONS_RATE_LIMIT", defaultRecommendRateLimit); err != nil {
		return nil, err
	}
	if cfg.Upstream.Timeout, err = parseDurationEnv("USER_SERVICE_TIMEOUT", defaultUserServiceTimeout); err != nil {
		return nil, err
	}
	if cfg.Upstream.TeacherCacheTTL, err = parseDurationEnv("TEACHER_CACHE_TTL", defaultTeacherCacheTTL); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the given service depends on. The course
// service never holds the refresh secret or the cookie settings.
func (cfg *Config) Validate(service string) error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.Token.AccessSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET must not be empty")
	}
	if cfg.Token.AccessTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be > 0")
	}
	if cfg.Guard.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if cfg.Guard.APIKey == "" {
		return fmt.Errorf("API_KEY must not be empty")
	}

	switch service {
	case ServiceUser:
		if err := cfg.validateUser(); err != nil {
			return err
		}
	case ServiceCourse:
		if err := cfg.validateCourse(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown service %q", service)
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.Token.AccessSecret, defaultAccessSecret) {
			return fmt.Errorf("in prod/release ACCESS_TOKEN_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.Guard.APIKey, defaultAPIKey) {
			return fmt.Errorf("in prod/release API_KEY must be set and not default")
		}
		if service == ServiceUser {
			if isEmptyOrDefault(cfg.Token.RefreshSecret, defaultRefreshSecret) {
				return fmt.Errorf("in prod/release REFRESH_TOKEN_SECRET must be set and not default")
			}
			if isEmptyOrDefault(cfg.Token.RefreshPepper, defaultRefreshPepper) {
				return fmt.Errorf("in prod/release REFRESH_TOKEN_PEPPER must be set and not default")
			}
			if !cfg.Cookie.Secure {
				return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
			}
		}
	}

	return nil
}

func (cfg *Config) validateUser() error {
	if cfg.Token.RefreshSecret == "" {
		return fmt.Errorf("REFRESH_TOKEN_SECRET must not be empty")
	}
	if cfg.Token.RefreshSecret == cfg.Token.AccessSecret {
		return fmt.Errorf("REFRESH_TOKEN_SECRET must differ from ACCESS_TOKEN_SECRET")
	}
	if cfg.Token.RefreshTTL <= cfg.Token.AccessTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must be longer than ACCESS_TOKEN_TTL")
	}
	if cfg.Cookie.Name == "" {
		return fmt.Errorf("COOKIE_NAME must not be empty")
	}
	if cfg.Cookie.Path == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	sameSite := strings.ToLower(cfg.Cookie.SameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.Cookie.Secure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}
	if cfg.Guard.AuthRateLimit <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must be > 0")
	}
	return nil
}

func (cfg *Config) validateCourse() error {
	if cfg.Upstream.UserServiceURL == "" {
		return fmt.Errorf("USER_SERVICE_URL must not be empty")
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("USER_SERVICE_TIMEOUT must be > 0")
	}
	if cfg.Guard.RecommendationsRateLimit <= 0 {
		return fmt.Errorf("RECOMMENDATIONS_RATE_LIMIT must be > 0")
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
