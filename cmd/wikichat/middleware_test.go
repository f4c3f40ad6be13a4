package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/api/handlers"
	"github.com/BaSui01/wikichat/config"
	"github.com/BaSui01/wikichat/types"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *handlers.ErrorInfo {
	t.Helper()
	var resp handlers.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler)

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
	handler := Chain(okHandler, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(okHandler, mark("outer"), mark("inner")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.RequestID(r.Context())
	})
	handler := RequestID()(inner)

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "req-123")
		handler.ServeHTTP(w, r)
		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("oversized replaced", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", strings.Repeat("x", 200))
		handler.ServeHTTP(w, r)
		assert.Len(t, seen, 36)
	})
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	Recovery(zap.NewNop())(panicking).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(types.ErrInternalError), decodeError(t, w).Code)
}

func TestRecovery_AbortHandlerRepanics(t *testing.T) {
	aborting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		Recovery(zap.NewNop())(aborting).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://chat.example.com"})(okHandler)

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed string
	}{
		{name: "same origin", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "allowed origin", method: http.MethodGet, origin: "https://chat.example.com", wantStatus: http.StatusOK, wantAllowed: "https://chat.example.com"},
		{name: "disallowed origin passes without headers", method: http.MethodGet, origin: "https://evil.example.com", wantStatus: http.StatusOK},
		{name: "allowed preflight", method: http.MethodOptions, origin: "https://chat.example.com", preflight: true, wantStatus: http.StatusNoContent, wantAllowed: "https://chat.example.com"},
		{name: "disallowed preflight", method: http.MethodOptions, origin: "https://evil.example.com", preflight: true, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/search/", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				r.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowed, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantAllowed != "" {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth([]string{"secret-key"}, publicPaths, zap.NewNop())(okHandler)

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{name: "public path", target: "/health", want: http.StatusOK},
		{name: "missing key", target: "/search/", want: http.StatusUnauthorized},
		{name: "wrong key", target: "/search/", header: "nope", want: http.StatusUnauthorized},
		{name: "header key", target: "/search/", header: "secret-key", want: http.StatusOK},
		{name: "query key", target: "/ws/chat?api_key=secret-key", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, string(types.ErrUnauthorized), decodeError(t, w).Code)
			}
		})
	}
}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTAuth(t *testing.T) {
	cfg := config.JWTConfig{Secret: "jwt-secret", Issuer: "wikichat"}

	var gotUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = types.UserID(r.Context())
	})
	handler := JWTAuth(cfg, publicPaths, zap.NewNop())(inner)

	valid := jwt.MapClaims{"sub": "alice", "iss": "wikichat", "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name     string
		target   string
		token    string
		want     int
		wantUser string
	}{
		{name: "public path", target: "/ready", want: http.StatusOK},
		{name: "missing header", target: "/search/", want: http.StatusUnauthorized},
		{name: "valid subject", target: "/search/", token: signHS256(t, "jwt-secret", valid), want: http.StatusOK, wantUser: "alice"},
		{
			name:   "user_id claim wins",
			target: "/search/",
			token: signHS256(t, "jwt-secret", jwt.MapClaims{
				"sub": "alice", "user_id": "u-42", "iss": "wikichat", "exp": time.Now().Add(time.Hour).Unix(),
			}),
			want:     http.StatusOK,
			wantUser: "u-42",
		},
		{name: "wrong secret", target: "/search/", token: signHS256(t, "other", valid), want: http.StatusUnauthorized},
		{
			name:   "wrong issuer",
			target: "/search/",
			token:  signHS256(t, "jwt-secret", jwt.MapClaims{"sub": "alice", "iss": "someone-else"}),
			want:   http.StatusUnauthorized,
		},
		{
			name:   "expired",
			target: "/search/",
			token:  signHS256(t, "jwt-secret", jwt.MapClaims{"sub": "alice", "iss": "wikichat", "exp": time.Now().Add(-time.Hour).Unix()}),
			want:   http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = ""
			r := httptest.NewRequest(http.MethodPost, tt.target, nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.wantUser, gotUser)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/search/", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
			assert.Equal(t, string(types.ErrRateLimited), decodeError(t, w).Code)
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 不同 IP 各自独立计数
	r := httptest.NewRequest(http.MethodPost, "/search/", nil)
	r.RemoteAddr = "10.0.0.2:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

type httpRecord struct {
	method, path string
	status       int
	respSize     int64
}

type recordingHTTPMetrics struct {
	mu      sync.Mutex
	records []httpRecord
}

func (m *recordingHTTPMetrics) RecordHTTPRequest(method, path string, status int, _ time.Duration, _, responseSize int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, httpRecord{method, path, status, responseSize})
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &recordingHTTPMetrics{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	})

	w := httptest.NewRecorder()
	MetricsMiddleware(rec)(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/abc_chunk_1", nil))

	require.Len(t, rec.records, 1)
	assert.Equal(t, httpRecord{http.MethodGet, "/documents/:id", http.StatusNotFound, 7}, rec.records[0])
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/":                      "/",
		"/health":                "/health",
		"/search/":               "/search/",
		"/collection/info":       "/collection/info",
		"/ws/chat":               "/ws/chat",
		"/documents/":            "/documents/",
		"/documents/some_doc_id": "/documents/:id",
		"/search":                "/search",
		"/wp-admin":              "other",
	}
	for in, want := range tests {
		assert.Equal(t, want, routeLabel(in), in)
	}
}

func TestOTelTracing_PassesThrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	OTelTracing()(inner).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/search/", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}
