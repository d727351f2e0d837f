package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/domain"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/utils"
	"learnhub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:      "test",
		Port:        "0",
		DatabaseURL: ":memory:",
		Token: config.TokenConfig{
			AccessSecret:  "access-secret",
			RefreshSecret: "refresh-secret",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			RefreshPepper: "pepper",
		},
		Cookie: config.CookieConfig{Name: "jwt", Path: "/", Secure: true, SameSite: "None"},
		Guard: config.GuardConfig{
			APIKey:                   "svc-key",
			AuthRateLimit:            5,
			RecommendationsRateLimit: 10,
			RateLimitWindow:          time.Minute,
		},
		Upstream: config.UpstreamConfig{
			UserServiceURL:  "http://127.0.0.1:1",
			Timeout:         500 * time.Millisecond,
			TeacherCacheTTL: time.Minute,
		},
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type userEnv struct {
	app   *App
	db    *gorm.DB
	clock *clock
}

func setupUserService(t *testing.T, cfg *config.Config) *userEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := &clock{now: time.Now()}
	db := newDB(t)
	a, err := BuildUserService(context.Background(), cfg, db, quietLogger(), WithTokenOptions(jwt.WithClock(clk.Now)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return &userEnv{app: a, db: db, clock: clk}
}

func seedUser(t *testing.T, db *gorm.DB, name, email, password string, role domain.UserRole) *domain.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u := &domain.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), u))
	return u
}

func send(h http.Handler, method, target, token string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type loginResult struct {
	AccessToken string `json:"accessToken"`
	User        struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"user"`
}

func login(t *testing.T, h http.Handler, email, password string) (loginResult, *http.Cookie) {
	t.Helper()
	w := send(h, http.MethodPost, "/users/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out loginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	var refresh *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "jwt" {
			refresh = c
		}
	}
	require.NotNil(t, refresh)
	return out, refresh
}

func TestUserService_RegisterThenDuplicate(t *testing.T) {
	env := setupUserService(t, testConfig())
	body := map[string]string{"name": "Ann", "email": "ann@example.com", "password": "secret123"}

	w := send(env.app.Router, http.MethodPost, "/users/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "student", created["role"])

	w = send(env.app.Router, http.MethodPost, "/users/register", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUserService_AccessTokenExpires(t *testing.T) {
	env := setupUserService(t, testConfig())
	seedUser(t, env.db, "Root", "root@example.com", "pw-admin", domain.RoleAdmin)

	session, _ := login(t, env.app.Router, "root@example.com", "pw-admin")
	assert.Equal(t, "admin", session.User.Role)

	w := send(env.app.Router, http.MethodGet, "/users/data/analytics", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env.clock.Advance(16 * time.Minute)

	w = send(env.app.Router, http.MethodGet, "/users/data/analytics", session.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestUserService_StudentCannotReadAnalytics(t *testing.T) {
	env := setupUserService(t, testConfig())
	seedUser(t, env.db, "Sam", "sam@example.com", "pw-student", domain.RoleStudent)

	session, _ := login(t, env.app.Router, "sam@example.com", "pw-student")
	w := send(env.app.Router, http.MethodGet, "/users/data/analytics", session.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = send(env.app.Router, http.MethodGet, "/users/me", session.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserService_RefreshAndLogout(t *testing.T) {
	env := setupUserService(t, testConfig())
	seedUser(t, env.db, "Tia", "tia@example.com", "pw-teacher", domain.RoleTeacher)

	_, cookie := login(t, env.app.Router, "tia@example.com", "pw-teacher")
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)

	w := send(env.app.Router, http.MethodGet, "/users/refresh", "", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var refreshed loginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, "teacher", refreshed.User.Role)

	w = send(env.app.Router, http.MethodPost, "/users/logout", "", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(env.app.Router, http.MethodGet, "/users/refresh", "", nil, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserService_LogoutWithoutCookie(t *testing.T) {
	env := setupUserService(t, testConfig())

	w := send(env.app.Router, http.MethodPost, "/users/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUserService_LoginRateLimited(t *testing.T) {
	env := setupUserService(t, testConfig())
	creds := map[string]string{"email": "nobody@example.com", "password": "wrong"}

	for i := 0; i < 5; i++ {
		w := send(env.app.Router, http.MethodPost, "/users/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := send(env.app.Router, http.MethodPost, "/users/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many login/signup attempts, try again later.", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func loginFrom(h http.Handler, forwardedFor string) *httptest.ResponseRecorder {
	body := strings.NewReader(`{"email":"nobody@example.com","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/login", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestUserService_LoginLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	env := setupUserService(t, testConfig())

	for i := 1; i <= 5; i++ {
		w := loginFrom(env.app.Router, fmt.Sprintf("10.0.0.%d", i))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := loginFrom(env.app.Router, "10.0.0.99")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestUserService_TrustedProxyForwardsClientIP(t *testing.T) {
	cfg := testConfig()
	cfg.TrustedProxies = []string{"192.0.2.0/24"}
	env := setupUserService(t, cfg)

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusUnauthorized, loginFrom(env.app.Router, "10.0.0.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(env.app.Router, "10.0.0.1").Code)
	assert.Equal(t, http.StatusUnauthorized, loginFrom(env.app.Router, "10.0.0.2").Code)
}

func TestBuildUserService_RejectsInvalidTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.TrustedProxies = []string{"not-an-ip"}

	_, err := BuildUserService(context.Background(), cfg, newDB(t), quietLogger())
	assert.Error(t, err)
}

func TestUserService_HealthAndMetrics(t *testing.T) {
	env := setupUserService(t, testConfig())

	w := send(env.app.Router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"user"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	send(env.app.Router, http.MethodPost, "/users/login", "", map[string]string{"email": "x@example.com", "password": "y"})

	w = send(env.app.Router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "learnhub_http_requests_total")
	assert.Contains(t, w.Body.String(), "learnhub_auth_events_total")
}

func TestUserService_CORSPreflight(t *testing.T) {
	env := setupUserService(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/users/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	env.app.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestBuildUserService_RejectsSharedSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.Token.RefreshSecret = cfg.Token.AccessSecret

	_, err := BuildUserService(context.Background(), cfg, newDB(t), quietLogger())
	assert.Error(t, err)
}

func TestCourseService_UsesUserServiceTokensAndProfiles(t *testing.T) {
	cfg := testConfig()
	users := setupUserService(t, cfg)
	teacher := seedUser(t, users.db, "Tia", "tia@example.com", "pw-teacher", domain.RoleTeacher)
	seedUser(t, users.db, "Root", "root@example.com", "pw-admin", domain.RoleAdmin)

	upstream := httptest.NewServer(users.app.Router)
	t.Cleanup(upstream.Close)
	cfg.Upstream.UserServiceURL = upstream.URL

	courses, err := BuildCourseService(context.Background(), cfg, newDB(t), quietLogger(),
		WithTokenOptions(jwt.WithClock(users.clock.Now)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = courses.Close() })

	teacherSession, _ := login(t, users.app.Router, "tia@example.com", "pw-teacher")
	w := send(courses.Router, http.MethodPost, "/courses", teacherSession.AccessToken, map[string]any{
		"course_title":    "Go Basics",
		"course_category": "programming",
		"course_rating":   4.5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	adminSession, _ := login(t, users.app.Router, "root@example.com", "pw-admin")
	w = send(courses.Router, http.MethodPost, "/courses", adminSession.AccessToken, map[string]any{
		"course_title":    "Ghost Course",
		"course_category": "programming",
		"teacher_id":      9999,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = send(courses.Router, http.MethodGet, "/courses", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var list struct {
		Total   int64 `json:"total"`
		Courses []struct {
			Title   string             `json:"course_title"`
			Teacher *domain.PublicUser `json:"teacher"`
		} `json:"courses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Courses, 1)
	assert.Equal(t, "Go Basics", list.Courses[0].Title)
	require.NotNil(t, list.Courses[0].Teacher)
	assert.Equal(t, teacher.ID, list.Courses[0].Teacher.ID)
	assert.Equal(t, "Tia", list.Courses[0].Teacher.Name)

	users.clock.Advance(16 * time.Minute)
	w = send(courses.Router, http.MethodPost, "/courses", teacherSession.AccessToken, map[string]any{
		"course_title":    "Too Late",
		"course_category": "programming",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCourseService_ListingSurvivesUserServiceOutage(t *testing.T) {
	cfg := testConfig()
	cfg.Upstream.Timeout = 200 * time.Millisecond

	db := newDB(t)
	require.NoError(t, repository.NewCourseRepository(db).Create(context.Background(), &domain.Course{
		Title: "Orphan", Category: "math", Rating: 3, TeacherID: 42,
	}))

	courses, err := BuildCourseService(context.Background(), cfg, db, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = courses.Close() })

	w := send(courses.Router, http.MethodGet, "/courses", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.Contains(w.Body.String(), `"teacher":null`))
}

func TestCourseService_RecommendationsLimitedThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Guard.RedisURL = "redis://" + mr.Addr()

	courses, err := BuildCourseService(context.Background(), cfg, newDB(t), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = courses.Close() })

	for i := 0; i < 10; i++ {
		w := send(courses.Router, http.MethodGet, "/courses/recommendations", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := send(courses.Router, http.MethodGet, "/courses/recommendations", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests, try again later.", w.Body.String())
	assert.NotEmpty(t, mr.Keys())
}

func TestCourseService_AnalyticsNeedsRoleAndKey(t *testing.T) {
	cfg := testConfig()
	courses, err := BuildCourseService(context.Background(), cfg, newDB(t), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = courses.Close() })

	issuer, err := jwt.New(jwt.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
	})
	require.NoError(t, err)
	admin, _, err := issuer.IssueAccess(jwt.Identity{ID: 1, Name: "Root", Role: "admin"})
	require.NoError(t, err)

	w := send(courses.Router, http.MethodGet, "/courses/analytics", admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = send(courses.Router, http.MethodGet, "/courses/analytics?apiKey=svc-key", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, sameSite("Strict"))
	assert.Equal(t, http.SameSiteNoneMode, sameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, sameSite("Lax"))
	assert.Equal(t, http.SameSiteLaxMode, sameSite(""))
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), quietLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
