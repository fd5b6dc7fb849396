package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/config"
	"github.com/BaSui01/demoforge/types"
)

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := SecurityHeaders()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	// SecurityHeaders should be present
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	// RequestID should also be present
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

// =============================================================================
// Identity
// =============================================================================

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func subjectCapturingHandler(captured *types.Subject, found *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := types.SubjectFrom(r.Context())
		*captured = subject
		*found = ok
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentity_DisabledInjectsDevSubject(t *testing.T) {
	var subject types.Subject
	var found bool
	handler := Identity(config.AuthConfig{Enabled: false, DevSubjectKey: "dev|local"}, nil, zap.NewNop())(
		subjectCapturingHandler(&subject, &found))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, found)
	assert.Equal(t, "dev|local", subject.Key)
}

func TestIdentity_ValidHS256Token(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret"}
	var subject types.Subject
	var found bool
	handler := Identity(cfg, nil, zap.NewNop())(subjectCapturingHandler(&subject, &found))

	tokenStr := signHS256(t, "test-secret", jwt.MapClaims{
		"sub":   "auth0|alice",
		"email": "alice@example.com",
		"name":  "Alice",
		"org":   "acme",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	r.Header.Set("Authorization", "Bearer "+tokenStr)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, found)
	assert.Equal(t, "auth0|alice", subject.Key)
	assert.Equal(t, "alice@example.com", subject.Email)
	assert.Equal(t, "Alice", subject.Name)
	assert.Equal(t, "acme", subject.OrgKey)
}

func TestIdentity_QueryParamToken(t *testing.T) {
	// WebSocket 握手无法携带自定义头，走 ?token= 查询参数
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret"}
	var subject types.Subject
	var found bool
	handler := Identity(cfg, nil, zap.NewNop())(subjectCapturingHandler(&subject, &found))

	tokenStr := signHS256(t, "test-secret", jwt.MapClaims{
		"sub": "auth0|bob",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/status/ws?token="+tokenStr, nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, found)
	assert.Equal(t, "auth0|bob", subject.Key)
}

func TestIdentity_MissingToken(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret"}
	handler := Identity(cfg, nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHENTICATED")
	assert.Contains(t, w.Body.String(), "missing or malformed Authorization header")
}

func TestIdentity_InvalidToken(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret"}
	handler := Identity(cfg, nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	t.Run("garbage token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid or expired token")
	})

	t.Run("wrong secret", func(t *testing.T) {
		tokenStr := signHS256(t, "other-secret", jwt.MapClaims{
			"sub": "auth0|mallory",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		r.Header.Set("Authorization", "Bearer "+tokenStr)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		tokenStr := signHS256(t, "test-secret", jwt.MapClaims{
			"sub": "auth0|late",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		r.Header.Set("Authorization", "Bearer "+tokenStr)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid or expired token")
	})

	t.Run("no sub claim", func(t *testing.T) {
		tokenStr := signHS256(t, "test-secret", jwt.MapClaims{
			"email": "nobody@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		r.Header.Set("Authorization", "Bearer "+tokenStr)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "token carries no subject")
	})
}

func TestIdentity_SkipPaths(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret"}
	skipPaths := []string{"/health", "/api/v1/blobs/"}
	handler := Identity(cfg, skipPaths, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("exact match skipped", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("prefix match skipped", func(t *testing.T) {
		// Blob 取回是能力型 URL：ID 即凭证，浏览器直接打开也要能访问
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/blobs/0a1b2c3d4e5f", nil)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other paths still guarded", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// =============================================================================
// RateLimiter
// =============================================================================

func TestRateLimiter_BurstExhaustion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 2, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}

func TestRateLimiter_SubjectsDoNotShareBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 1, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(subjectKey string) int {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		r = r.WithContext(types.WithSubject(r.Context(), types.Subject{Key: subjectKey}))
		handler.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("auth0|alice"))
	assert.Equal(t, http.StatusTooManyRequests, send("auth0|alice"))
	// 同一 IP 上的另一个 Subject 有独立配额
	assert.Equal(t, http.StatusOK, send("auth0|bob"))
}

func TestRateLimiter_ResponseBody(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 1, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		r.RemoteAddr = "10.0.0.2:1000"
		handler.ServeHTTP(w, r)
		if i == 1 {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Contains(t, w.Body.String(), "RATE_LIMITED")
			assert.Contains(t, w.Body.String(), `"success":false`)
		}
	}
}

// =============================================================================
// CORS
// =============================================================================

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := CORS([]string{"https://app.demoforge.dev"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("simple request", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		r.Header.Set("Origin", "https://app.demoforge.dev")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.demoforge.dev", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
		r.Header.Set("Origin", "https://app.demoforge.dev")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.demoforge.dev", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin gets no headers", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORS_EmptyConfigDeniesCrossOrigin(t *testing.T) {
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
		r.Header.Set("Origin", "https://app.demoforge.dev")
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("same-origin request unaffected", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

// =============================================================================
// RequestID / normalizePath
// =============================================================================

func TestRequestID(t *testing.T) {
	var ctxID string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID, _ = types.RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generated when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		handler.ServeHTTP(w, r)

		got := w.Header().Get("X-Request-ID")
		assert.NotEmpty(t, got)
		assert.Contains(t, got, "req-")
		assert.Equal(t, got, ctxID)
	})

	t.Run("client value preserved", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "req-from-client")
		handler.ServeHTTP(w, r)

		assert.Equal(t, "req-from-client", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "req-from-client", ctxID)
	})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/api/v1/documents", "/api/v1/documents"},
		{"/api/v1/documents/0a1b2c3d4e5f6789", "/api/v1/documents/:id"},
		{"/api/v1/artifacts/550e8400-e29b-41d4-a716-446655440000", "/api/v1/artifacts/:id"},
		{"/api/v1/blobs/9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", "/api/v1/blobs/:id"},
		{"/api/v1/status/ws", "/api/v1/status/ws"},
		{"/api/v1/documents/12345", "/api/v1/documents/:id"},
		{"/api/v1/unknown/short", "/api/v1/unknown/short"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.path), "path %s", tt.path)
	}
}
