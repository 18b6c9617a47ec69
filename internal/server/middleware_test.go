package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dawnsea/tidescan/internal/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	handler := correlationIDMiddleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	corrID := rr.Header().Get("X-Correlation-ID")
	if len(corrID) != 8 {
		t.Errorf("Expected generated 8-char correlation ID, got %q", corrID)
	}
}

func TestCorrelationIDMiddleware_PreservesRequestID(t *testing.T) {
	handler := correlationIDMiddleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Correlation-ID"); got != "req-42" {
		t.Errorf("Expected X-Request-ID to be preserved, got %q", got)
	}
}

func TestCorrelationIDMiddleware_PreservesCorrelationID(t *testing.T) {
	handler := correlationIDMiddleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-7")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Correlation-ID"); got != "corr-7" {
		t.Errorf("Expected X-Correlation-ID to be preserved, got %q", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Preflight must not reach the next handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/market/screen", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rr.Code)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Expected wildcard origin, got %q", origin)
	}
	allowHeaders := rr.Header().Get("Access-Control-Allow-Headers")
	for _, h := range []string{"Authorization", "X-Request-ID", "X-Correlation-ID"} {
		if !strings.Contains(allowHeaders, h) {
			t.Errorf("Expected %s in Access-Control-Allow-Headers, got: %s", h, allowHeaders)
		}
	}
}

func TestRecoveryMiddleware_Returns500(t *testing.T) {
	capture := &bytes.Buffer{}
	logger := common.NewLoggerWithOutput("error", capture)

	handler := recoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/market/screen", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rr.Code)
	}
	if !strings.Contains(capture.String(), "Panic recovered in HTTP handler") {
		t.Error("Expected the panic to be logged")
	}
	if !strings.Contains(capture.String(), "handler exploded") {
		t.Error("Expected the panic value in the log")
	}
}

func TestLoggingMiddleware_4xxUsesInfoLevel(t *testing.T) {
	// At WARN level, Info() events are filtered out. 4xx responses log at
	// info, so nothing should reach the writer.
	capture := &bytes.Buffer{}
	logger := common.NewLoggerWithOutput("warn", capture)

	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/missing", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if strings.Contains(capture.String(), "HTTP request") {
		t.Errorf("Expected 404 log to be filtered at WARN level, but it passed through: %s", capture.String())
	}
}

func TestLoggingMiddleware_5xxUsesErrorLevel(t *testing.T) {
	capture := &bytes.Buffer{}
	logger := common.NewLoggerWithOutput("warn", capture)

	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/broken", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !strings.Contains(capture.String(), "HTTP request") {
		t.Errorf("Expected 500 log to pass the WARN filter, got: %q", capture.String())
	}
}

func TestLoggingMiddleware_2xxUsesTraceLevel(t *testing.T) {
	capture := &bytes.Buffer{}
	logger := common.NewLoggerWithOutput("info", capture)

	handler := loggingMiddleware(logger)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if strings.Contains(capture.String(), "HTTP request") {
		t.Errorf("Expected 200 log to be filtered at INFO level, but it passed through: %s", capture.String())
	}
}

func signTestToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authTestConfig(secret string) *common.Config {
	config := common.NewDefaultConfig()
	config.Server.AuthTokenSecret = secret
	return config
}

func TestAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	handler := authMiddleware(authTestConfig(""))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/market/screen", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected auth to be disabled, got %d", rr.Code)
	}
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	handler := authMiddleware(authTestConfig("hush"))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/market/screen", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Error("Expected a WWW-Authenticate challenge")
	}
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	handler := authMiddleware(authTestConfig("hush"))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/market/screen", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "hush", time.Hour))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAuthMiddleware_RejectsExpiredToken(t *testing.T) {
	handler := authMiddleware(authTestConfig("hush"))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/market/screen", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "hush", -time.Hour))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for expired token, got %d", rr.Code)
	}
}

func TestAuthMiddleware_RejectsWrongSecret(t *testing.T) {
	handler := authMiddleware(authTestConfig("hush"))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/market/screen", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "other-secret", time.Hour))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong secret, got %d", rr.Code)
	}
}

func TestAuthMiddleware_SystemRoutesStayOpen(t *testing.T) {
	handler := authMiddleware(authTestConfig("hush"))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected /api/health to bypass auth, got %d", rr.Code)
	}
}
