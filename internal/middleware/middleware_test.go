package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learnhub/internal/domain"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/ratelimit"
	"learnhub/internal/pkg/rbac"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTokens(t *testing.T, clk *clock) *jwt.Service {
	t.Helper()
	var opts []jwt.Option
	if clk != nil {
		opts = append(opts, jwt.WithClock(clk.Now))
	}
	svc, err := jwt.New(jwt.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, opts...)
	require.NoError(t, err)
	return svc
}

func accessToken(t *testing.T, svc *jwt.Service, id int64, role domain.UserRole) string {
	t.Helper()
	token, _, err := svc.IssueAccess(jwt.Identity{ID: id, Name: "user", Role: string(role)})
	require.NoError(t, err)
	return token
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func do(r http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func TestAuthenticate(t *testing.T) {
	clk := &clock{now: time.Now()}
	svc := newTokens(t, clk)
	token := accessToken(t, svc, 42, domain.RoleTeacher)

	r := gin.New()
	r.GET("/protected", Authenticate(svc), func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id.ID, "role": id.Role, "user_id": c.GetInt64(ContextUserID)})
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		w := do(r, http.MethodGet, "/protected", token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":42,"role":"teacher","user_id":42}`, w.Body.String())
	})

	t.Run("missing header is 401", func(t *testing.T) {
		w := do(r, http.MethodGet, "/protected", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token is 403", func(t *testing.T) {
		w := do(r, http.MethodGet, "/protected", "not-a-jwt")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("token signed with another secret is 403", func(t *testing.T) {
		other, err := jwt.New(jwt.Config{AccessSecret: "x", RefreshSecret: "y", AccessTTL: time.Minute, RefreshTTL: time.Hour})
		require.NoError(t, err)
		w := do(r, http.MethodGet, "/protected", accessToken(t, other, 42, domain.RoleAdmin))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("expired token is 403", func(t *testing.T) {
		clk.now = clk.now.Add(16 * time.Minute)
		defer func() { clk.now = clk.now.Add(-16 * time.Minute) }()
		w := do(r, http.MethodGet, "/protected", token)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAuthorize_AdminOnly(t *testing.T) {
	svc := newTokens(t, nil)
	r := gin.New()
	r.GET("/admin", Authenticate(svc), Authorize(quietLogger(), domain.RoleAdmin), ok)

	cases := []struct {
		role domain.UserRole
		want int
	}{
		{domain.RoleStudent, http.StatusForbidden},
		{domain.RoleTeacher, http.StatusForbidden},
		{domain.RoleAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			w := do(r, http.MethodGet, "/admin", accessToken(t, svc, 1, tc.role))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuthorize_WithoutIdentityIsServerError(t *testing.T) {
	r := gin.New()
	r.GET("/misassembled", Authorize(quietLogger(), domain.RoleAdmin), ok)

	w := do(r, http.MethodGet, "/misassembled", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAPIKey(t *testing.T) {
	r := gin.New()
	r.GET("/internal", APIKey("s3cret"), ok)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/internal", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/internal?apiKey=wrong", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/internal?apiKey=s3cret", "").Code)

	open := gin.New()
	open.GET("/internal", APIKey(""), ok)
	assert.Equal(t, http.StatusForbidden, do(open, http.MethodGet, "/internal?apiKey=", "").Code)
}

func TestRateLimit_RejectsOverQuotaWithPlainText(t *testing.T) {
	limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), 5, time.Minute, "test")
	require.NoError(t, err)

	r := gin.New()
	r.POST("/login", RateLimit(limiter, RateAuth, quietLogger(), nil), ok)

	for i := 0; i < 5; i++ {
		w := do(r, http.MethodPost, "/login", "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(r, http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many login/signup attempts, try again later.", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func testGuard(t *testing.T, svc *jwt.Service) Guard {
	t.Helper()
	auth, err := ratelimit.New(ratelimit.NewMemoryStore(), 2, time.Minute, "auth")
	require.NoError(t, err)
	return Guard{
		Verifier: svc,
		Matrix:   rbac.Default(),
		APIKey:   "k",
		Limiters: map[RateClass]*ratelimit.Limiter{RateAuth: auth},
		Log:      quietLogger(),
	}
}

func TestMount_RejectsInvalidTables(t *testing.T) {
	svc := newTokens(t, nil)
	g := testGuard(t, svc)

	cases := map[string][]Route{
		"duplicate": {
			{Method: http.MethodGet, Path: "/a", Handler: ok},
			{Method: http.MethodGet, Path: "/a", Handler: ok},
		},
		"unknown capability": {
			{Method: http.MethodGet, Path: "/a", Access: Access{Capability: "courses:delete"}, Handler: ok},
		},
		"unknown rate class": {
			{Method: http.MethodGet, Path: "/a", Access: Access{RateClass: RateRecommendations}, Handler: ok},
		},
		"missing handler": {
			{Method: http.MethodGet, Path: "/a"},
		},
	}
	for name, routes := range cases {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			assert.Error(t, Mount(r, g, routes))
			assert.Empty(t, r.Routes(), "no route is registered when the table is invalid")
		})
	}

	t.Run("api key without configured key", func(t *testing.T) {
		g := testGuard(t, svc)
		g.APIKey = ""
		err := Mount(gin.New(), g, []Route{{Method: http.MethodGet, Path: "/a", Access: Access{APIKey: true}, Handler: ok}})
		assert.Error(t, err)
	})
}

func TestMount_ChainOrder(t *testing.T) {
	svc := newTokens(t, nil)
	r := gin.New()
	require.NoError(t, Mount(r, testGuard(t, svc), []Route{
		{Method: http.MethodGet, Path: "/analytics", Access: Access{Capability: rbac.CoursesAnalytics, APIKey: true}, Handler: ok},
		{Method: http.MethodPost, Path: "/login", Access: Access{RateClass: RateAuth}, Handler: ok},
		{Method: http.MethodGet, Path: "/me", Access: Access{Capability: rbac.SelfRead, RateClass: RateAuth}, Handler: ok},
	}))

	admin := accessToken(t, svc, 1, domain.RoleAdmin)
	student := accessToken(t, svc, 2, domain.RoleStudent)

	t.Run("role is checked before the api key", func(t *testing.T) {
		w := do(r, http.MethodGet, "/analytics?apiKey=k", student)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")

		w = do(r, http.MethodGet, "/analytics", admin)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_API_KEY")

		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/analytics?apiKey=k", admin).Code)
	})

	t.Run("rate limit runs before authentication", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
		assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/me", "").Code)
	})
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/x", ok)

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(quietLogger()))
	r.GET("/x", ok)

	w := do(r, http.MethodGet, "/x", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestErrorLogger_RecoversPanic(t *testing.T) {
	r := gin.New()
	r.Use(ErrorLogger(quietLogger()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}
