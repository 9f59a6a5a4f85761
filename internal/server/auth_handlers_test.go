package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dottapps/api-front/internal/backendauth"
	"github.com/dottapps/api-front/internal/config"
	"github.com/dottapps/api-front/internal/cookie"
	"github.com/dottapps/api-front/internal/exchange"
	"github.com/dottapps/api-front/internal/session"
	"github.com/dottapps/api-front/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type stubBackend struct {
	calls  int
	result *backendauth.LoginResult
	err    error

	lastClientIP string
}

func (s *stubBackend) PasswordLogin(_ context.Context, _, _, clientIP string) (*backendauth.LoginResult, error) {
	s.calls++
	s.lastClientIP = clientIP
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func delegatedHandlers(backend *stubBackend) *AuthHandlers {
	return NewAuthHandlers(exchange.New(config.AuthModeBackendDelegated, nil, backend, ""))
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAuthenticateSuccess(t *testing.T) {
	backend := &stubBackend{result: &backendauth.LoginResult{
		Session: session.Session{
			User:        session.User{Sub: "auth0|1", Email: "user@example.com", EmailVerified: true},
			AccessToken: "sess1",
			IDToken:     "sess1",
			ExpiresIn:   86400,
			TokenType:   "Bearer",
		},
		Cookies: []*http.Cookie{{Name: "session_token", Value: "sess1", Path: "/"}},
	}}
	h := delegatedHandlers(backend)

	rec := postJSON(t, h.AuthenticateHandler, "/api/auth/authenticate",
		`{"email":"user@example.com","password":"hunter2"}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "sess1", body["access_token"])
	assert.NotContains(t, body, "debugLog")

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "auth0|1", user["sub"])

	cookies := rec.Result().Cookies()
	names := make(map[string]string)
	for _, c := range cookies {
		names[c.Name] = c.Value
	}
	assert.Equal(t, "sess1", names["session_token"])
	assert.Equal(t, "sess1", names[cookie.SessionIDCookie])
}

func TestAuthenticateForwardsClientIP(t *testing.T) {
	backend := &stubBackend{err: &backendauth.Error{StatusCode: 401, Description: "Invalid email or password"}}
	h := delegatedHandlers(backend)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/authenticate",
		strings.NewReader(`{"email":"user@example.com","password":"bad"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.AuthenticateHandler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "203.0.113.9", backend.lastClientIP)
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	backend := &stubBackend{}
	h := delegatedHandlers(backend)

	rec := postJSON(t, h.AuthenticateHandler, "/api/auth/authenticate", `{"email":"user@example.com"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, backend.calls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing_credentials", body["error"])
	assert.Contains(t, body, "debugLog")
}

func TestAuthenticateInvalidJSON(t *testing.T) {
	h := delegatedHandlers(&stubBackend{})

	rec := postJSON(t, h.AuthenticateHandler, "/api/auth/authenticate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthenticateMethodNotAllowed(t *testing.T) {
	h := delegatedHandlers(&stubBackend{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/authenticate", nil)
	rec := httptest.NewRecorder()
	h.AuthenticateHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestAuthenticateErrorCarriesDebugLog(t *testing.T) {
	backend := &stubBackend{err: &backendauth.Error{
		StatusCode:  401,
		Code:        "invalid_credentials",
		Description: "Invalid email or password",
	}}
	h := delegatedHandlers(backend)

	rec := postJSON(t, h.AuthenticateHandler, "/api/auth/authenticate",
		`{"email":"user@example.com","password":"bad"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Error    string `json:"error"`
		Message  string `json:"message"`
		DebugLog []struct {
			Step   string `json:"step"`
			Detail string `json:"detail"`
		} `json:"debugLog"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_credentials", body.Error)
	require.NotEmpty(t, body.DebugLog)

	for _, step := range body.DebugLog {
		assert.NotContains(t, step.Detail, "hunter2")
		assert.NotContains(t, step.Detail, "user@example.com")
	}
}

func TestAuthenticateDirectProviderConfigurationError(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.On("PasswordGrant", mock.Anything, "user@example.com", "hunter2", "").
		Return(nil, &oauth2.RetrieveError{
			ErrorCode:        "unauthorized_client",
			ErrorDescription: "Grant type 'password' not allowed for the client.",
		})

	h := NewAuthHandlers(exchange.New(config.AuthModeDirectProvider, provider, &stubBackend{}, ""))

	rec := postJSON(t, h.AuthenticateHandler, "/api/auth/authenticate",
		`{"email":"user@example.com","password":"hunter2"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "configuration_error", body["error"])
	assert.Equal(t, true, body["requiresUniversalLogin"])
	provider.AssertExpectations(t)
}

func TestLogoutClearsCookies(t *testing.T) {
	h := delegatedHandlers(&stubBackend{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.LogoutHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	cleared := make(map[string]bool)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	assert.True(t, cleared[cookie.SessionIDCookie])
	assert.True(t, cleared[cookie.LegacySessionIDCookie])
	assert.True(t, cleared[cookie.LegacyAuthCookie])
}
