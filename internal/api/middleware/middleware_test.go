package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func sign(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.Use(Auth(testSecret))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name   string
		header func(t *testing.T) string
		status int
		user   string
	}{
		{
			name: "userId claim",
			header: func(t *testing.T) string {
				return "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"userId": "u-1"}, testSecret)
			},
			status: http.StatusOK,
			user:   "u-1",
		},
		{
			name: "user_id claim",
			header: func(t *testing.T) string {
				return "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u-2"}, testSecret)
			},
			status: http.StatusOK,
			user:   "u-2",
		},
		{
			name: "numeric id",
			header: func(t *testing.T) string {
				return "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"userId": 42}, testSecret)
			},
			status: http.StatusOK,
			user:   "42",
		},
		{
			name:   "missing header",
			header: func(t *testing.T) string { return "" },
			status: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			header: func(t *testing.T) string {
				return "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"userId": "u-1"}, "other")
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "unexpected algorithm",
			header: func(t *testing.T) string {
				return "Bearer " + sign(t, jwt.SigningMethodHS384, jwt.MapClaims{"userId": "u-1"}, testSecret)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "expired",
			header: func(t *testing.T) string {
				return "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{
					"userId": "u-1",
					"exp":    time.Now().Add(-time.Hour).Unix(),
				}, testSecret)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "no user id",
			header: func(t *testing.T) string {
				return "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}, testSecret)
			},
			status: http.StatusUnauthorized,
		},
	}

	r := authRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if h := tt.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.user, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

// asUser 模擬已驗證的使用者
func asUser(c *gin.Context) {
	if id := c.GetHeader("X-Test-User"); id != "" {
		c.Set(userIDKey, id)
	}
	c.Next()
}

func TestRateLimitPerUser(t *testing.T) {
	r := gin.New()
	r.Use(asUser, RateLimit(2, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("alice"))
	assert.Equal(t, http.StatusOK, call("alice"))
	assert.Equal(t, http.StatusTooManyRequests, call("alice"))
	assert.Equal(t, http.StatusOK, call("bob"))
}

func TestRateLimiterRefill(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }
	rl.lastTime = now

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	// 每 5 秒補一個令牌
	now = now.Add(5 * time.Second)
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestDeduplication(t *testing.T) {
	r := gin.New()
	r.Use(asUser, Deduplication(time.Minute))
	r.POST("/echo", func(c *gin.Context) {
		body, _ := c.GetRawData()
		c.String(http.StatusOK, string(body))
	})
	r.GET("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	post := func(user, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := post("alice", `{"message":"豚肉"}`)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, `{"message":"豚肉"}`, first.Body.String())

	assert.Equal(t, http.StatusTooManyRequests, post("alice", `{"message":"豚肉"}`).Code)
	assert.Equal(t, http.StatusOK, post("alice", `{"message":"鶏肉"}`).Code)
	assert.Equal(t, http.StatusOK, post("bob", `{"message":"豚肉"}`).Code)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/echo", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INTERNAL_ERROR"`)
}
