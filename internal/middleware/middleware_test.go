package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"talkify/api/internal/config"
	"talkify/api/internal/models"
	"talkify/api/internal/repository"
	"talkify/api/internal/response"
	"talkify/api/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUsers map[string]models.User

func (s stubUsers) GetByID(_ context.Context, id string) (models.User, error) {
	if id == "broken" {
		return models.User{}, errors.New("connection reset")
	}
	user, ok := s[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[token], nil
}

func testIssuer() *security.TokenIssuer {
	return security.NewTokenIssuer(config.SecurityConfig{
		JWTAccessSecret:  "access-secret",
		JWTRefreshSecret: "refresh-secret",
		JWTAccessTTL:     time.Hour,
		JWTRefreshTTL:    24 * time.Hour,
	})
}

func protectedRouter(tokens *security.TokenIssuer, users UserLookup, revoked RevocationChecker) *gin.Engine {
	router := gin.New()
	log := zerolog.Nop()
	router.Use(Auth(tokens, users, revoked, log))
	router.GET("/me", func(c *gin.Context) {
		user, _ := CurrentUser(c)
		response.JSON(c, http.StatusOK, user, "")
	})
	router.GET("/onboarded", RequireOnboarded(log), func(c *gin.Context) {
		response.JSON(c, http.StatusOK, nil, "ok")
	})
	return router
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestAuthMiddleware(t *testing.T) {
	tokens := testIssuer()
	pair, err := tokens.Issue("u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	orphan, err := tokens.Issue("ghost")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	broken, err := tokens.Issue("broken")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	secret := "stored"
	users := stubUsers{"u1": {ID: "u1", FullName: "Ada", PasswordHash: []byte("hash"), RefreshToken: &secret}}

	cases := []struct {
		name    string
		prepare func(r *http.Request)
		revoked stubRevocations
		issuer  *security.TokenIssuer
		status  int
		message string
	}{
		{
			name:    "no token",
			prepare: func(*http.Request) {},
			status:  http.StatusUnauthorized,
			message: "Unauthorized - No token provided",
		},
		{
			name: "cookie token",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: pair.AccessToken})
			},
			status: http.StatusOK,
		},
		{
			name: "bearer token",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
			},
			status: http.StatusOK,
		},
		{
			name: "cookie wins over header",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "garbage"})
				r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
			},
			status:  http.StatusUnauthorized,
			message: "Unauthorized - Invalid token",
		},
		{
			name: "refresh token rejected",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
			},
			status:  http.StatusUnauthorized,
			message: "Unauthorized - Invalid token",
		},
		{
			name: "revoked token",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
			},
			revoked: stubRevocations{revoked: map[string]bool{pair.AccessToken: true}},
			status:  http.StatusUnauthorized,
			message: "Unauthorized - Token revoked",
		},
		{
			name: "denylist unavailable",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
			},
			revoked: stubRevocations{err: errors.New("redis down")},
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
		{
			name: "user deleted",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+orphan.AccessToken)
			},
			status:  http.StatusUnauthorized,
			message: "Unauthorized - User not found",
		},
		{
			name: "store failure",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+broken.AccessToken)
			},
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
		{
			name: "secret missing",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
			},
			issuer:  security.NewTokenIssuer(config.SecurityConfig{JWTAccessTTL: time.Hour, JWTRefreshTTL: time.Hour}),
			status:  http.StatusInternalServerError,
			message: "Server configuration error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			issuer := tc.issuer
			if issuer == nil {
				issuer = tokens
			}
			router := protectedRouter(issuer, users, tc.revoked)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.prepare(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			env := decode(t, rec)
			if tc.status != http.StatusOK {
				if env.Message != tc.message || env.Success {
					t.Fatalf("unexpected envelope %+v", env)
				}
				return
			}

			data, _ := env.Data.(map[string]any)
			if data["ID"] != "u1" {
				t.Fatalf("expected actor u1 got %+v", env.Data)
			}
			if data["PasswordHash"] != nil || data["RefreshToken"] != nil {
				t.Fatalf("secrets leaked into request context: %+v", data)
			}
		})
	}
}

func TestRequireOnboarded(t *testing.T) {
	tokens := testIssuer()
	users := stubUsers{
		"fresh": {ID: "fresh"},
		"ready": {ID: "ready", IsOnboarded: true},
	}
	router := protectedRouter(tokens, users, stubRevocations{})

	cases := []struct {
		user   string
		status int
	}{
		{"fresh", http.StatusForbidden},
		{"ready", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.user, func(t *testing.T) {
			pair, err := tokens.Issue(tc.user)
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			req := httptest.NewRequest(http.MethodGet, "/onboarded", nil)
			req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
			if tc.status == http.StatusForbidden {
				if env := decode(t, rec); env.Message != "Please complete onboarding first" {
					t.Fatalf("unexpected message %q", env.Message)
				}
			}
		})
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Minute, 2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatalf("expected burst of two to pass")
	}
	if limiter.Allow("a") {
		t.Fatalf("expected third request to be limited")
	}
	if !limiter.Allow("b") {
		t.Fatalf("expected separate bucket for another key")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("a") {
		t.Fatalf("expected token to refill after the window")
	}

	now = now.Add(time.Hour)
	limiter.Allow("c")
	if _, ok := limiter.visitors["b"]; ok {
		t.Fatalf("expected idle visitor to be collected")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.POST("/login", RateLimit(NewIPRateLimiter(1, time.Hour, 1, time.Hour), zerolog.Nop()), func(c *gin.Context) {
		response.JSON(c, http.StatusOK, nil, "ok")
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if env := decode(t, rec); env.Success || env.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"http://localhost:5173/"}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204 got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("expected origin echoed")
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unlisted origin must not be allowed")
	}
}

func TestRecoveryAndRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery(zerolog.Nop()))
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("expected request id to be echoed")
	}
	if env := decode(t, rec); env.Message != "Internal server error" || env.Success {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
