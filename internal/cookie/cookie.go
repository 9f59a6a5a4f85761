package cookie

import (
	"net/http"
	"time"

	"github.com/dottapps/api-front/internal/envutil"
	"github.com/dottapps/api-front/internal/log"
)

// Cookie names recognized by api-front. Two session-id names exist because of
// the session-cookie migration: "sid" is current, "session_token" is the
// previous generation and still honored. "dott_auth_session" is the legacy
// base64-encoded JSON session from before the backend minted session ids.
const (
	SessionIDCookie       = "sid"
	LegacySessionIDCookie = "session_token"
	LegacyAuthCookie      = "dott_auth_session"
)

// SetSessionID sets the current-generation session id cookie with
// appropriate security settings
func SetSessionID(w http.ResponseWriter, value string, maxAge time.Duration) {
	secure := !envutil.IsDev()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionIDCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})

	log.LogTraceWithFields("cookie", "Session cookie set", map[string]any{
		"maxAge":   maxAge.String(),
		"secure":   secure,
		"sameSite": "Lax",
	})
}

// Clear removes a cookie by setting MaxAge to -1
func Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// ClearSession removes all session cookie generations
func ClearSession(w http.ResponseWriter) {
	Clear(w, SessionIDCookie)
	Clear(w, LegacySessionIDCookie)
	Clear(w, LegacyAuthCookie)
	log.LogTraceWithFields("cookie", "Session cookies cleared", nil)
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
