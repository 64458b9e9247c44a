package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"maternity-companion-server/internal/config"
	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
	}
}

func whoami(c *gin.Context) {
	id, _ := GetUserIDFromContext(c)
	c.String(http.StatusOK, id)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	router := gin.New()
	router.GET("/me", AuthMiddleware(cfg), whoami)

	user := &models.User{BaseModel: models.BaseModel{ID: "user-42"}, Email: "zawadi@example.com"}
	access, refresh, err := utils.GenerateTokens(user, cfg)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"refresh token rejected", "Bearer " + refresh, http.StatusUnauthorized},
		{"valid", "Bearer " + access, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.code, rec.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "user-42", rec.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("requestID")) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "my-custom-id", rec.Header().Get(RequestIDHeader))
}

func TestLogger_LevelsByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(RequestID(), Logger(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/bad", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/boom", entries[2].ContextMap()["path"])
	assert.EqualValues(t, 500, entries[2].ContextMap()["status"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())

	var body utils.ResponseData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, body.Status)
	assert.Equal(t, "An error occurred", body.Message)
	assert.Equal(t, "internal server error", body.Error)
}

func TestUserRateLimiter(t *testing.T) {
	limiter := NewUserRateLimiter(1, 2)
	router := gin.New()
	router.GET("/tip", func(c *gin.Context) {
		c.Set(contextUserID, c.Query("user"))
		c.Next()
	}, limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := func(user string, n int) []int {
		out := make([]int, n)
		for i := range out {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tip?user="+user, nil))
			out[i] = rec.Code
			if rec.Code == http.StatusTooManyRequests {
				assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			}
		}
		return out
	}

	assert.Equal(t, []int{200, 200, 429}, codes("alice", 3))
	// Budgets are per user.
	assert.Equal(t, []int{200, 200}, codes("bob", 2))
}

func TestUserRateLimiter_EvictsIdleBuckets(t *testing.T) {
	limiter := NewUserRateLimiter(1, 1)
	now := time.Date(2024, 9, 23, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	limiter.lastSweep = now

	limiter.get("alice")
	limiter.get("bob")
	require.Equal(t, 2, limiter.Len())

	now = now.Add(5 * time.Minute)
	limiter.get("bob")
	assert.Equal(t, 2, limiter.Len(), "no sweep before the TTL elapses")

	now = now.Add(6 * time.Minute)
	limiter.get("carol")
	assert.Equal(t, 2, limiter.Len(), "alice was idle past the TTL")
	limiter.mu.Lock()
	_, aliceKept := limiter.limiters["alice"]
	limiter.mu.Unlock()
	assert.False(t, aliceKept)
}

func TestUserRateLimiter_TTLCoversRefill(t *testing.T) {
	assert.Equal(t, idleBucketTTL, NewUserRateLimiter(20, 5).idleTTL)
	assert.Equal(t, 30*time.Minute, NewUserRateLimiter(2, 60).idleTTL)
}

func TestUserRateLimiter_Disabled(t *testing.T) {
	limiter := NewUserRateLimiter(0, 0)
	router := gin.New()
	router.GET("/", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
