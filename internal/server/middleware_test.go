package server

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dottapps/api-front/internal/config"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestCORSMiddlewareAllowedOrigin(t *testing.T) {
	mw := NewCORSMiddleware([]string{"https://app.dottapps.com"})
	handler := mw(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/authenticate", nil)
	req.Header.Set("Origin", "https://app.dottapps.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.dottapps.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddlewareDisallowedOrigin(t *testing.T) {
	mw := NewCORSMiddleware([]string{"https://app.dottapps.com"})
	handler := mw(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	mw := NewCORSMiddleware(nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight should not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/authenticate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	mw := NewRecoverMiddleware("test")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterDelegator(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := wrapResponseWriter(rec)

	wrapped.WriteHeader(http.StatusTeapot)
	wrapped.WriteHeader(http.StatusOK) // second call ignored
	n, err := wrapped.Write([]byte("hello"))

	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusTeapot, wrapped.Status())
	assert.Equal(t, 5, wrapped.BytesWritten())
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func testAdminConfig(t *testing.T, password string) config.AdminConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return config.AdminConfig{
		Username:       "admin",
		HashedPassword: config.Secret(hash),
	}
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestAdminAuthMiddleware(t *testing.T) {
	mw := newAdminAuthMiddleware(testAdminConfig(t, "hunter2"))
	handler := mw(okHandler())

	t.Run("valid credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/logging", nil)
		req.Header.Set("Authorization", basicAuth("admin", "hunter2"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/logging", nil)
		req.Header.Set("Authorization", basicAuth("admin", "wrong"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("wrong username", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/logging", nil)
		req.Header.Set("Authorization", basicAuth("root", "hunter2"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/logging", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage base64", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/logging", nil)
		req.Header.Set("Authorization", "Basic not-base64!!!")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
