package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/pkg/jwt"
	"github.com/JxWayne890/complyflow-financial/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newRouter(m *jwt.Manager, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(), JWTAuth(m))
	r.Use(extra...)
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, GetActor(c))
	})
	return r
}

func TestJWTAuth_SetsActor(t *testing.T) {
	m := jwt.NewManager("test-secret")
	token, err := m.GenerateToken("adv1", "org1", "advisor", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	newRouter(m).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"adv1","org_id":"org1","role":"advisor"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestJWTAuth_QueryToken(t *testing.T) {
	m := jwt.NewManager("test-secret")
	token, err := m.GenerateToken("cco1", "org1", "compliance", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/me?token="+token, nil)
	newRouter(m).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth_Rejections(t *testing.T) {
	m := jwt.NewManager("test-secret")
	expired, _ := m.GenerateToken("adv1", "org1", "advisor", -time.Minute)
	badRole, _ := m.GenerateToken("adv1", "org1", "superuser", time.Hour)
	foreign, _ := jwt.NewManager("other").GenerateToken("adv1", "org1", "advisor", time.Hour)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + foreign, http.StatusUnauthorized},
		{"unknown role", "Bearer " + badRole, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			newRouter(m).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	m := jwt.NewManager("test-secret")
	r := newRouter(m, RequireRole(domain.RoleCompliance, domain.RoleAdmin))

	for role, want := range map[string]int{"compliance": http.StatusOK, "admin": http.StatusOK, "advisor": http.StatusForbidden} {
		token, _ := m.GenerateToken("u1", "org1", role, time.Hour)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func TestMetrics_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/content/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/content/abc", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/content/:id", routeLabel("/content/:id"))
}

func TestRateLimit_PassesWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(nil, RateLimitConfig{RequestsPerMinute: 1, KeyPrefix: "test:"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestCallerKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "ip:10.0.0.1", callerKey(c))

	c.Set(actorKey, domain.Actor{ID: "adv1", OrgID: "org1", Role: domain.RoleAdvisor})
	assert.Equal(t, "user:adv1", callerKey(c))
}
