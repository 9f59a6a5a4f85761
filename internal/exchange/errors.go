package exchange

import (
	"fmt"
	"net/http"
)

// ErrorKind is the stable error identifier surfaced to callers
type ErrorKind string

const (
	// KindMissingCredentials - client omitted email or password; no outbound
	// call was made
	KindMissingCredentials ErrorKind = "missing_credentials"

	// KindInvalidCredentials - the authority rejected the email/password pair
	KindInvalidCredentials ErrorKind = "invalid_credentials"

	// KindEmailNotVerified - authentication blocked until the user verifies
	// their email; carries the email so the UI can offer a resend
	KindEmailNotVerified ErrorKind = "email_not_verified"

	// KindAccessDenied - the backend refused the account (suspended, closed)
	KindAccessDenied ErrorKind = "access_denied"

	// KindRateLimited - upstream throttling; the caller decides backoff
	KindRateLimited ErrorKind = "rate_limited"

	// KindConfigurationError - the deployment has not enabled the password
	// grant on the provider side; carries requiresUniversalLogin so callers
	// can fall back to redirect-based login
	KindConfigurationError ErrorKind = "configuration_error"

	// KindAuthenticationFailed - unmapped provider rejection
	KindAuthenticationFailed ErrorKind = "authentication_failed"

	// KindAuthServiceError - unmapped backend rejection, backend status and
	// text surfaced
	KindAuthServiceError ErrorKind = "auth_service_error"

	// KindAuthServiceUnavailable - network or parse failure talking to the
	// authority; safe for the caller to retry
	KindAuthServiceUnavailable ErrorKind = "auth_service_unavailable"

	// KindUpstreamTimeout - the authority did not answer within the
	// configured deadline
	KindUpstreamTimeout ErrorKind = "upstream_timeout"
)

// AuthError is the mapped outcome of a failed credential exchange
type AuthError struct {
	Kind    ErrorKind
	Status  int
	Message string

	// Email is set for email_not_verified so the UI can offer to resend
	// the verification mail
	Email string

	// RequiresUniversalLogin signals the caller should fall back to a
	// redirect-based login flow
	RequiresUniversalLogin bool
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func errMissingCredentials(message string) *AuthError {
	return &AuthError{Kind: KindMissingCredentials, Status: http.StatusBadRequest, Message: message}
}

func errInvalidCredentials() *AuthError {
	return &AuthError{Kind: KindInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid email or password"}
}

func errEmailNotVerified(email string) *AuthError {
	return &AuthError{
		Kind:    KindEmailNotVerified,
		Status:  http.StatusUnauthorized,
		Message: "Email address has not been verified",
		Email:   email,
	}
}

func errAccessDenied(message string) *AuthError {
	if message == "" {
		message = "Access denied"
	}
	return &AuthError{Kind: KindAccessDenied, Status: http.StatusForbidden, Message: message}
}

func errRateLimited() *AuthError {
	return &AuthError{Kind: KindRateLimited, Status: http.StatusTooManyRequests, Message: "Too many login attempts, please try again later"}
}

func errConfigurationError(detail string) *AuthError {
	return &AuthError{
		Kind:                   KindConfigurationError,
		Status:                 http.StatusForbidden,
		Message:                "Password login is not enabled for this deployment: " + detail,
		RequiresUniversalLogin: true,
	}
}

func errAuthenticationFailed(detail string) *AuthError {
	if detail == "" {
		detail = "Authentication failed"
	}
	return &AuthError{Kind: KindAuthenticationFailed, Status: http.StatusUnauthorized, Message: detail}
}

func errAuthServiceError(status int, detail string) *AuthError {
	return &AuthError{Kind: KindAuthServiceError, Status: status, Message: detail}
}

func errAuthServiceUnavailable() *AuthError {
	return &AuthError{Kind: KindAuthServiceUnavailable, Status: http.StatusServiceUnavailable, Message: "Authentication service is unavailable"}
}

func errUpstreamTimeout() *AuthError {
	return &AuthError{Kind: KindUpstreamTimeout, Status: http.StatusGatewayTimeout, Message: "Authentication service did not respond in time"}
}
