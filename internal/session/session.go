// Package session defines the normalized session bundle produced by the
// credential exchange and the credential schemes derived from browser cookies
// on proxied calls.
package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dottapps/api-front/internal/cookie"
)

// User is the profile subset carried inside a Session
type User struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// Session is the normalized bundle of tokens proving an authenticated user.
// Exactly one representation is active per deployment: provider-issued tokens
// or a backend-minted session id carried in AccessToken.
type Session struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// legacyCookie is the pre-migration browser session shape: the whole session
// JSON, base64 encoded, stored client side.
type legacyCookie struct {
	AccessToken string `json:"accessToken"`
	IDToken     string `json:"idToken,omitempty"`
	User        *User  `json:"user,omitempty"`
}

// Scheme identifies which authorization scheme a credential carries
type Scheme string

const (
	// SchemeNone means no session material was found; the request proceeds
	// unauthenticated and the backend decides whether to reject.
	SchemeNone Scheme = ""

	// SchemeSessionID formats Authorization as "Session <id>"
	SchemeSessionID Scheme = "session"

	// SchemeBearer formats Authorization as "Bearer <token>"
	SchemeBearer Scheme = "bearer"
)

// Credential is the tagged result of cookie parsing. Replaces sequential
// try/decode fallthrough with an explicit variant per cookie generation.
type Credential struct {
	Scheme Scheme

	// SessionID and CookieName are set for SchemeSessionID
	SessionID  string
	CookieName string

	// AccessToken is set for SchemeBearer
	AccessToken string
}

// DecodeLegacyCookie decodes the base64-encoded JSON session cookie.
// Both standard and URL-safe alphabets are accepted because different client
// generations wrote different encodings.
func DecodeLegacyCookie(value string) (*Session, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(value)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding legacy session cookie: %w", err)
	}

	var legacy legacyCookie
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("parsing legacy session cookie: %w", err)
	}
	if legacy.AccessToken == "" {
		return nil, fmt.Errorf("legacy session cookie has no access token")
	}

	s := &Session{
		AccessToken: legacy.AccessToken,
		IDToken:     legacy.IDToken,
		TokenType:   "Bearer",
	}
	if legacy.User != nil {
		s.User = *legacy.User
	}
	return s, nil
}

// FromCookies derives the outbound credential from request cookies.
// Priority order, first match wins: current session-id cookie, previous
// session-id cookie, legacy base64 session cookie. A malformed legacy cookie
// yields no credential rather than an error; auth enforcement belongs to the
// backend.
func FromCookies(r *http.Request) Credential {
	for _, name := range []string{cookie.SessionIDCookie, cookie.LegacySessionIDCookie} {
		if value, err := cookie.Get(r, name); err == nil && value != "" {
			return Credential{
				Scheme:     SchemeSessionID,
				SessionID:  value,
				CookieName: name,
			}
		}
	}

	if value, err := cookie.Get(r, cookie.LegacyAuthCookie); err == nil && value != "" {
		legacy, err := DecodeLegacyCookie(value)
		if err != nil {
			return Credential{}
		}
		return Credential{
			Scheme:      SchemeBearer,
			AccessToken: legacy.AccessToken,
		}
	}

	return Credential{}
}

// Apply attaches the credential to an outbound request. Session-id
// credentials are also re-set as a cookie so a backend that looks for the
// cookie rather than the header still finds the session.
func (c Credential) Apply(req *http.Request) {
	switch c.Scheme {
	case SchemeSessionID:
		req.Header.Set("Authorization", "Session "+c.SessionID)
		req.AddCookie(&http.Cookie{Name: c.CookieName, Value: c.SessionID})
	case SchemeBearer:
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}
}
