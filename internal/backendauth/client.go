// Package backendauth talks to the backend API's password-login endpoint for
// deployments where credential checking is delegated to the backend instead
// of the identity provider.
package backendauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dottapps/api-front/internal/ioutil"
	"github.com/dottapps/api-front/internal/session"
	"github.com/dottapps/api-front/internal/urlutil"
)

// backendSessionTTL is the lifetime reported for backend-minted sessions.
// The backend owns actual expiry; this is the value surfaced to clients.
const backendSessionTTL = 86400

// Error is a non-2xx response from the password-login endpoint
type Error struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("backend auth returned status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("backend auth returned status %d", e.StatusCode)
}

// LoginResult carries the normalized session plus the backend's cookies,
// which must be propagated so backend session state is not lost
type LoginResult struct {
	Session session.Session
	Cookies []*http.Cookie
}

// Client calls the backend's internal authentication endpoint
type Client struct {
	loginURL   string
	httpClient *http.Client
}

// NewClient creates a client for the given backend base URL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		loginURL: urlutil.MustJoinPath(baseURL, "api", "auth", "password-login/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// backendLoginResponse is the backend's success shape
type backendLoginResponse struct {
	User struct {
		ID        json.Number `json:"id"`
		Email     string      `json:"email"`
		Name      string      `json:"name"`
		FirstName string      `json:"first_name"`
		LastName  string      `json:"last_name"`
		Picture   string      `json:"picture"`
		AuthSub   string      `json:"auth0_sub"`
	} `json:"user"`
	SessionID string `json:"session_id"`
}

// backendErrorResponse is the backend's rejection shape
type backendErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Detail           string `json:"detail"`
}

// PasswordLogin checks credentials against the backend.
// clientIP is the caller's originating address, forwarded so the backend sees
// the real client rather than this proxy.
func (c *Client) PasswordLogin(ctx context.Context, email, password, clientIP string) (*LoginResult, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseBackendError(resp)
	}

	var loginResp backendLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("parsing login response: %w", err)
	}
	if loginResp.SessionID == "" {
		return nil, fmt.Errorf("login response missing session_id")
	}

	return &LoginResult{
		Session: normalizeSession(&loginResp),
		Cookies: resp.Cookies(),
	}, nil
}

func parseBackendError(resp *http.Response) *Error {
	body := ioutil.ReadLimited(resp.Body, 4096)

	backendErr := &Error{
		StatusCode:  resp.StatusCode,
		Description: body,
	}

	var parsed backendErrorResponse
	if json.Unmarshal([]byte(body), &parsed) == nil {
		backendErr.Code = parsed.Error
		switch {
		case parsed.ErrorDescription != "":
			backendErr.Description = parsed.ErrorDescription
		case parsed.Detail != "":
			backendErr.Description = parsed.Detail
		}
	}
	return backendErr
}

// normalizeSession translates the backend response into the Session shape so
// downstream code never needs to know which authority issued the session.
// The backend session id doubles as access and id token.
func normalizeSession(resp *backendLoginResponse) session.Session {
	sub := resp.User.AuthSub
	if sub == "" {
		sub = "auth0|" + resp.User.ID.String()
	}

	name := resp.User.Name
	if name == "" && (resp.User.FirstName != "" || resp.User.LastName != "") {
		name = resp.User.FirstName
		if resp.User.LastName != "" {
			if name != "" {
				name += " "
			}
			name += resp.User.LastName
		}
	}

	return session.Session{
		User: session.User{
			Sub:           sub,
			Email:         resp.User.Email,
			Name:          name,
			GivenName:     resp.User.FirstName,
			FamilyName:    resp.User.LastName,
			Picture:       resp.User.Picture,
			EmailVerified: true,
		},
		AccessToken: resp.SessionID,
		IDToken:     resp.SessionID,
		ExpiresIn:   backendSessionTTL,
		TokenType:   "Bearer",
	}
}
