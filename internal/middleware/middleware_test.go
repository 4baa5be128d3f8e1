package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	app_errors "chat-relay/internal/errors"
	"chat-relay/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestLogger tests logging middleware
func TestLogger(t *testing.T) {
	config := types.LogConfig{Level: "info"}
	middleware := Logger(config)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	middleware(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

// TestCORS tests CORS middleware
func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		config         types.CORSConfig
		origin         string
		method         string
		expectedStatus int
		expectHeaders  bool
	}{
		{
			name: "CORS disabled",
			config: types.CORSConfig{
				Enabled: false,
			},
			origin:         "http://localhost:3000",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectHeaders:  false,
		},
		{
			name: "CORS enabled with wildcard",
			config: types.CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST"},
				AllowedHeaders: []string{"*"},
			},
			origin:         "http://localhost:3000",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectHeaders:  true,
		},
		{
			name: "CORS preflight request",
			config: types.CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"http://localhost:3000"},
				AllowedMethods: []string{"GET", "POST"},
				AllowedHeaders: []string{"Content-Type"},
			},
			origin:         "http://localhost:3000",
			method:         http.MethodOptions,
			expectedStatus: http.StatusNoContent,
			expectHeaders:  true,
		},
		{
			name: "CORS with specific origin",
			config: types.CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"http://localhost:3000"},
				AllowedMethods: []string{"GET"},
				AllowedHeaders: []string{"*"},
			},
			origin:         "http://localhost:3000",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectHeaders:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := CORS(tt.config)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(tt.method, "/test", nil)
			c.Request.Header.Set("Origin", tt.origin)

			middleware(c)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectHeaders && tt.config.Enabled {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

// TestCORSDisallowedOrigin tests that disallowed origins get no CORS headers
func TestCORSDisallowedOrigin(t *testing.T) {
	middleware := CORS(types.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"*"},
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	c.Request.Header.Set("Origin", "http://evil.example.com")

	middleware(c)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// TestAuth tests authentication middleware
func TestAuth(t *testing.T) {
	authConfig := types.AuthConfig{
		Key: "test-auth-key",
	}

	tests := []struct {
		name        string
		authKey     string
		shouldAbort bool
	}{
		{
			name:        "valid auth key in query",
			authKey:     "test-auth-key",
			shouldAbort: false,
		},
		{
			name:        "invalid auth key",
			authKey:     "wrong-key",
			shouldAbort: true,
		},
		{
			name:        "missing auth key",
			authKey:     "",
			shouldAbort: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := Auth(authConfig)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			if tt.authKey != "" {
				c.Request = httptest.NewRequest(http.MethodGet, "/test?key="+tt.authKey, nil)
			} else {
				c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
			}

			middleware(c)

			if tt.shouldAbort {
				assert.True(t, c.IsAborted())
			} else {
				assert.False(t, c.IsAborted())
			}
		})
	}
}

// TestAuthMonitoringEndpoint tests that health checks bypass authentication
func TestAuthMonitoringEndpoint(t *testing.T) {
	middleware := Auth(types.AuthConfig{Key: "test-auth-key"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	middleware(c)

	assert.False(t, c.IsAborted())
}

// TestRecovery tests recovery middleware
func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(Recovery())
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
}

// TestRateLimiter tests rate limiting middleware
func TestRateLimiter(t *testing.T) {
	config := types.PerformanceConfig{MaxConcurrentRequests: 1}
	middleware := RateLimiter(config)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	middleware(c)

	assert.False(t, c.IsAborted())
}

// TestErrorHandler tests error handling middleware
func TestErrorHandler(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/api-error", func(c *gin.Context) {
		c.Error(app_errors.NewAPIError(app_errors.ErrBadRequest, "bad input"))
	})
	router.GET("/plain-error", func(c *gin.Context) {
		c.Error(errors.New("boom"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-error", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad input")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain-error", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
}

// TestIsMonitoringEndpoint tests the monitoring endpoint detection
func TestIsMonitoringEndpoint(t *testing.T) {
	assert.True(t, isMonitoringEndpoint("/health"))
	assert.False(t, isMonitoringEndpoint("/api/sessions"))
	assert.False(t, isMonitoringEndpoint("/v1/chat/completions"))
}

// TestExtractAuthKeyFromDifferentSources tests all auth key sources
func TestExtractAuthKeyFromDifferentSources(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(c *gin.Context)
		expected string
	}{
		{
			name: "query parameter",
			setup: func(c *gin.Context) {
				c.Request = httptest.NewRequest(http.MethodGet, "/test?key=query-key", nil)
			},
			expected: "query-key",
		},
		{
			name: "bearer token",
			setup: func(c *gin.Context) {
				c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
				c.Request.Header.Set("Authorization", "Bearer bearer-key")
			},
			expected: "bearer-key",
		},
		{
			name: "x-api-key header",
			setup: func(c *gin.Context) {
				c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
				c.Request.Header.Set("X-Api-Key", "header-key")
			},
			expected: "header-key",
		},
		{
			name: "no key",
			setup: func(c *gin.Context) {
				c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.setup(c)

			assert.Equal(t, tt.expected, extractAuthKey(c))
		})
	}
}

// TestExtractAuthKeyQueryRemoval tests that the key query param is stripped
func TestExtractAuthKeyQueryRemoval(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test?key=secret&other=1", nil)

	key := extractAuthKey(c)

	assert.Equal(t, "secret", key)
	assert.NotContains(t, c.Request.URL.RawQuery, "secret")
	assert.Contains(t, c.Request.URL.RawQuery, "other=1")
}

// TestSecurityHeaders tests security headers middleware
func TestSecurityHeaders(t *testing.T) {
	middleware := SecurityHeaders()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	middleware(c)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Permissions-Policy"))
}

// TestRequestBodySizeLimit tests request body size limiting
func TestRequestBodySizeLimit(t *testing.T) {
	router := gin.New()
	router.Use(RequestBodySizeLimit(16))
	router.POST("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("a", 64)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("small"))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
