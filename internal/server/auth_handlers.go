package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dottapps/api-front/internal/cookie"
	"github.com/dottapps/api-front/internal/exchange"
	"github.com/dottapps/api-front/internal/ioutil"
	jsonwriter "github.com/dottapps/api-front/internal/json"
	"github.com/dottapps/api-front/internal/log"
	"github.com/dottapps/api-front/internal/session"
)

const maxLoginBodySize = 8 * 1024

// AuthHandlers exposes the credential exchange over HTTP
type AuthHandlers struct {
	exchanger *exchange.Exchanger
}

// NewAuthHandlers creates auth handlers backed by the given exchanger
func NewAuthHandlers(exchanger *exchange.Exchanger) *AuthHandlers {
	return &AuthHandlers{exchanger: exchanger}
}

// authenticateResponse is the success envelope
type authenticateResponse struct {
	Success bool `json:"success"`
	session.Session
}

// authenticateError is the failure envelope. DebugLog carries the redacted
// exchange trace; tokens never appear in it.
type authenticateError struct {
	Error                  string               `json:"error"`
	Message                string               `json:"message"`
	Email                  string               `json:"email,omitempty"`
	RequiresUniversalLogin bool                 `json:"requiresUniversalLogin,omitempty"`
	DebugLog               []exchange.TraceStep `json:"debugLog,omitempty"`
}

// AuthenticateHandler handles POST /api/auth/authenticate
func (h *AuthHandlers) AuthenticateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST is supported")
		return
	}

	body := ioutil.ReadLimited(r.Body, maxLoginBodySize)

	var req exchange.Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid JSON body")
		return
	}

	trace := exchange.NewTrace()
	result, authErr := h.exchanger.Exchange(r.Context(), req, clientIP(r), trace)
	if authErr != nil {
		log.LogWarnWithFields("auth", "Credential exchange failed", map[string]any{
			"error":  string(authErr.Kind),
			"status": authErr.Status,
			"email":  exchange.RedactEmail(req.Email),
		})
		writeAuthError(w, authErr, trace)
		return
	}

	for _, c := range result.Cookies {
		http.SetCookie(w, c)
	}
	if result.SessionID != "" {
		cookie.SetSessionID(w, result.SessionID, time.Duration(result.Session.ExpiresIn)*time.Second)
	}

	log.LogInfoWithFields("auth", "Credential exchange succeeded", map[string]any{
		"email": exchange.RedactEmail(result.Session.User.Email),
		"sub":   result.Session.User.Sub,
	})

	// Success responses never carry the debug trace
	_ = jsonwriter.WriteResponse(w, http.StatusOK, authenticateResponse{
		Success: true,
		Session: result.Session,
	})
}

// LogoutHandler handles POST /api/auth/logout by clearing session cookies
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST is supported")
		return
	}

	cookie.ClearSession(w)
	_ = jsonwriter.WriteResponse(w, http.StatusOK, map[string]bool{"success": true})
}

func writeAuthError(w http.ResponseWriter, authErr *exchange.AuthError, trace *exchange.Trace) {
	_ = jsonwriter.WriteResponse(w, authErr.Status, authenticateError{
		Error:                  string(authErr.Kind),
		Message:                authErr.Message,
		Email:                  authErr.Email,
		RequiresUniversalLogin: authErr.RequiresUniversalLogin,
		DebugLog:               trace.Steps(),
	})
}

// clientIP prefers the leftmost X-Forwarded-For entry, falling back to the
// socket peer
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
