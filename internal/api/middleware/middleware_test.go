package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"yearn-vaults/internal/api/auth"
	"yearn-vaults/internal/logger"
)

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"https://yearn.fi", "*.yearn.farm"}

	assert.True(t, IsOriginAllowed("https://yearn.fi", allowed))
	assert.True(t, IsOriginAllowed("https://app.yearn.farm", allowed))
	assert.False(t, IsOriginAllowed("https://evilyearn.farm", allowed))
	assert.False(t, IsOriginAllowed("https://yearn.fi.evil", allowed))
	assert.True(t, IsOriginAllowed("https://anything", nil))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:4321"
	assert.Equal(t, "192.0.2.1", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", ClientIP(r))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, NewRateLimiter(0).Allow("a"), "zero disables limiting")

	rl.idle = 0
	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, rl.Cleanup())
}

func TestJWTAuth(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour)
	handler := JWTAuth(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetAdminFromContext(r.Context())
		assert.NotNil(t, claims)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _ := manager.GenerateToken("admin")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecovery(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Recovery(logger.Nop()))
	r.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}
