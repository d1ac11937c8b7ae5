package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	router.GET("/fail", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return router
}

func TestCORS(t *testing.T) {
	router := setupTestRouter(CORS(DefaultCORSConfig()))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{name: "localhost dev server", method: "GET", origin: "http://localhost:5173", wantStatus: http.StatusOK, wantAllow: "http://localhost:5173"},
		{name: "loopback ip", method: "GET", origin: "http://127.0.0.1:1420", wantStatus: http.StatusOK, wantAllow: "http://127.0.0.1:1420"},
		{name: "tauri webview", method: "GET", origin: "tauri://localhost", wantStatus: http.StatusOK, wantAllow: "tauri://localhost"},
		{name: "preflight", method: "OPTIONS", origin: "http://localhost:5173", wantStatus: http.StatusNoContent, wantAllow: "http://localhost:5173"},
		{name: "remote origin rejected", method: "GET", origin: "https://evil.example", wantStatus: http.StatusForbidden},
		{name: "no origin header", method: "GET", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == "OPTIONS" {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSExplicitOrigins(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowLoopback = false
	cfg.AllowOrigins = []string{"https://console.example"}
	router := setupTestRouter(CORS(cfg))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://console.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://console.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIsLocalOrigin(t *testing.T) {
	tests := map[string]bool{
		"http://localhost":         true,
		"https://localhost:8443":   true,
		"http://[::1]:3000":        true,
		"http://127.0.0.2":         true,
		"tauri://localhost":        true,
		"http://192.168.1.10":      false,
		"ftp://localhost":          false,
		"http://localhost.evil.io": false,
		"://bad":                   false,
	}
	for origin, want := range tests {
		assert.Equal(t, want, IsLocalOrigin(origin), origin)
	}
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own bucket
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitRefills(t *testing.T) {
	clock := newFakeClock()
	set := newLimiterSet(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Hour}, clock.Now)

	assert.True(t, set.allow("a"))
	assert.False(t, set.allow("a"))

	clock.Advance(time.Second)
	assert.True(t, set.allow("a"))
}

func TestRateLimitDropsIdleClients(t *testing.T) {
	clock := newFakeClock()
	set := newLimiterSet(RateLimitConfig{RequestsPerSecond: 10, Burst: 10, IdleTTL: time.Minute}, clock.Now)

	set.allow("a")
	set.allow("b")
	require.Equal(t, 2, set.size())

	clock.Advance(30 * time.Second)
	set.allow("b")

	clock.Advance(40 * time.Second)
	set.allow("c")

	// a idle for 70s is swept, b seen 40s ago survives
	assert.Equal(t, 2, set.size())
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := setupTestRouter(RequestLogger(zap.New(core)))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest("GET", "/fail", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusInternalServerError, entries[1].ContextMap()["status"])
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
