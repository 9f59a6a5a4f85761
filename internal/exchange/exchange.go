// Package exchange turns an email/password pair into a normalized Session,
// delegating the credential check to the identity provider or to the backend
// API depending on the deployment's auth mode.
package exchange

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dottapps/api-front/internal/backendauth"
	"github.com/dottapps/api-front/internal/config"
	"github.com/dottapps/api-front/internal/emailutil"
	"github.com/dottapps/api-front/internal/idp"
	"github.com/dottapps/api-front/internal/log"
	"github.com/dottapps/api-front/internal/session"
	"golang.org/x/oauth2"
)

// Request is the credential exchange input
type Request struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Connection string `json:"connection,omitempty"`
}

// Result is a successful exchange: the normalized session plus any backend
// cookies that must be propagated to the caller. SessionID is set only when
// the backend minted an opaque session; bearer tokens never go in it.
type Result struct {
	Session   session.Session
	SessionID string
	Cookies   []*http.Cookie
}

// BackendClient is the subset of the backend auth client the exchanger needs
type BackendClient interface {
	PasswordLogin(ctx context.Context, email, password, clientIP string) (*backendauth.LoginResult, error)
}

// Exchanger performs credential exchanges for one configured auth mode.
// Stateless; safe for concurrent use.
type Exchanger struct {
	mode              config.AuthMode
	provider          idp.Provider
	backend           BackendClient
	defaultConnection string
}

// New creates an exchanger. provider may be nil when mode is
// backend-delegated; backend is always required because it is the fallback
// authority. defaultConnection is the provider realm used when a request
// does not name one.
func New(mode config.AuthMode, provider idp.Provider, backend BackendClient, defaultConnection string) *Exchanger {
	return &Exchanger{
		mode:              mode,
		provider:          provider,
		backend:           backend,
		defaultConnection: defaultConnection,
	}
}

// Exchange validates the request and runs a single authentication attempt.
// No retries; rate limiting is enforced by the authorities themselves.
func (e *Exchanger) Exchange(ctx context.Context, req Request, clientIP string, trace *Trace) (*Result, *AuthError) {
	if req.Email == "" || req.Password == "" {
		trace.Add("validate_input", "missing email or password")
		if req.Email == "" {
			return nil, errMissingCredentials("email is required")
		}
		return nil, errMissingCredentials("password is required")
	}

	email := emailutil.Normalize(req.Email)
	trace.Addf("validate_input", "email=%s", RedactEmail(email))

	if e.mode == config.AuthModeBackendDelegated {
		trace.Add("mode_selected", "backend-delegated")
		return e.backendLogin(ctx, email, req.Password, clientIP, trace)
	}

	connection := req.Connection
	if connection == "" {
		connection = e.defaultConnection
	}

	trace.Add("mode_selected", "direct-provider")
	return e.directLogin(ctx, email, req.Password, connection, trace)
}

func (e *Exchanger) backendLogin(ctx context.Context, email, password, clientIP string, trace *Trace) (*Result, *AuthError) {
	result, err := e.backend.PasswordLogin(ctx, email, password, clientIP)
	if err != nil {
		return nil, mapBackendError(err, email, trace)
	}

	trace.Add("backend_login", "session minted")
	return &Result{
		Session:   result.Session,
		SessionID: result.Session.AccessToken,
		Cookies:   result.Cookies,
	}, nil
}

func mapBackendError(err error, email string, trace *Trace) *AuthError {
	var backendErr *backendauth.Error
	if !errors.As(err, &backendErr) {
		if isTimeout(err) {
			trace.Add("backend_login", "timed out")
			return errUpstreamTimeout()
		}
		trace.Addf("backend_login", "unreachable: %v", err)
		return errAuthServiceUnavailable()
	}

	trace.Addf("backend_login", "rejected with status %d", backendErr.StatusCode)

	switch backendErr.StatusCode {
	case http.StatusUnauthorized:
		if mentionsVerification(backendErr.Description) {
			return errEmailNotVerified(email)
		}
		return errInvalidCredentials()
	case http.StatusForbidden:
		return errAccessDenied(backendErr.Description)
	default:
		log.LogErrorWithFields("exchange", "Backend auth error", map[string]any{
			"status": backendErr.StatusCode,
			"code":   backendErr.Code,
			"detail": backendErr.Description,
		})
		return errAuthServiceError(backendErr.StatusCode, backendErr.Description)
	}
}

func (e *Exchanger) directLogin(ctx context.Context, email, password, connection string, trace *Trace) (*Result, *AuthError) {
	token, err := e.provider.PasswordGrant(ctx, email, password, connection)
	if err != nil {
		return nil, mapProviderError(err, email, trace)
	}
	trace.Add("token_request", "grant succeeded")

	sess := session.Session{
		User: session.User{
			Email:         email,
			EmailVerified: true,
		},
		AccessToken:  token.AccessToken,
		IDToken:      idp.IDToken(token),
		RefreshToken: token.RefreshToken,
		ExpiresIn:    expiresIn(token),
		TokenType:    tokenType(token),
	}

	// Token issuance is the authoritative success signal; a userinfo failure
	// degrades to the token-response fields instead of failing the exchange.
	// A userinfo answer of email_verified=false still rejects - verification
	// is enforced here, not delegated to the grant alone.
	identity, err := e.provider.UserInfo(ctx, token)
	if err != nil {
		trace.Addf("userinfo", "degraded: %v", err)
		log.LogWarnWithFields("exchange", "Userinfo unavailable, proceeding with token fields", map[string]any{
			"error": err.Error(),
		})
		return &Result{Session: sess}, nil
	}

	if !identity.EmailVerified {
		trace.Add("userinfo", "email not verified")
		return nil, errEmailNotVerified(identity.Email)
	}

	trace.Add("userinfo", "profile fetched")
	sess.User = session.User{
		Sub:           identity.Sub,
		Email:         identity.Email,
		Name:          identity.Name,
		GivenName:     identity.GivenName,
		FamilyName:    identity.FamilyName,
		Picture:       identity.Picture,
		EmailVerified: identity.EmailVerified,
	}
	return &Result{Session: sess}, nil
}

func mapProviderError(err error, email string, trace *Trace) *AuthError {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		if isTimeout(err) {
			trace.Add("token_request", "timed out")
			return errUpstreamTimeout()
		}
		trace.Addf("token_request", "unreachable: %v", err)
		return errAuthServiceUnavailable()
	}

	code := retrieveErr.ErrorCode
	description := retrieveErr.ErrorDescription
	trace.Addf("token_request", "rejected: %s", code)

	switch {
	case code == "invalid_grant" && mentionsVerification(description):
		return errEmailNotVerified(email)
	case code == "invalid_grant":
		return errInvalidCredentials()
	case code == "too_many_attempts":
		return errRateLimited()
	case code == "unauthorized_client" || strings.Contains(description, "Grant type"):
		// Deployment misconfiguration, not a user error: the password grant
		// is disabled on the provider side. Operators need full detail.
		log.LogErrorWithFields("exchange", "Password grant not enabled on provider", map[string]any{
			"error":       code,
			"description": description,
		})
		return errConfigurationError(description)
	default:
		return errAuthenticationFailed(description)
	}
}

// mentionsVerification matches provider and backend rejection text about
// unverified emails ("verify", "verification", "verified"). Deliberately not
// matching "email" alone - "Wrong email or password" is a credential error.
func mentionsVerification(description string) bool {
	return strings.Contains(strings.ToLower(description), "verif")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func expiresIn(token *oauth2.Token) int64 {
	if v, ok := token.Extra("expires_in").(int64); ok && v > 0 {
		return v
	}
	if v, ok := token.Extra("expires_in").(float64); ok && v > 0 {
		return int64(v)
	}
	return 0
}

func tokenType(token *oauth2.Token) string {
	if token.TokenType != "" {
		return token.TokenType
	}
	return "Bearer"
}
