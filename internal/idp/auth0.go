package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dottapps/api-front/internal/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// grantTypePasswordRealm is Auth0's extension grant for authenticating
// against a named connection (realm)
const grantTypePasswordRealm = "http://auth0.com/oauth/grant-type/password-realm"

// defaultScopes requested with every password grant
const defaultScopes = "openid profile email offline_access"

// Auth0Config configures an Auth0-compatible provider
type Auth0Config struct {
	// Domain is the provider domain, with or without scheme
	// (e.g., auth.dottapps.com)
	Domain string

	ClientID     string
	ClientSecret string

	// Audience is the API identifier included in the grant request
	Audience string

	// Timeout bounds each outbound call (token, userinfo, discovery)
	Timeout time.Duration
}

// endpoints resolved for a provider domain
type endpoints struct {
	Token    string
	UserInfo string
}

// Auth0Provider implements Provider against an Auth0-compatible tenant.
//
// Endpoints are resolved lazily from OIDC discovery; concurrent exchanges
// share a single discovery fetch via singleflight, and the conventional
// /oauth/token and /userinfo paths are used when discovery is unavailable.
type Auth0Provider struct {
	cfg     Auth0Config
	baseURL string
	client  *http.Client

	group singleflight.Group
	mu    sync.RWMutex
	eps   *endpoints
}

// NewAuth0Provider creates a provider for the given tenant
func NewAuth0Provider(cfg Auth0Config) (*Auth0Provider, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("provider domain is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("provider client credentials are required")
	}

	baseURL := cfg.Domain
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Auth0Provider{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// resolveEndpoints returns the tenant's token and userinfo endpoints,
// fetching OIDC discovery at most once across concurrent callers
func (p *Auth0Provider) resolveEndpoints(ctx context.Context) *endpoints {
	p.mu.RLock()
	eps := p.eps
	p.mu.RUnlock()
	if eps != nil {
		return eps
	}

	result, _, _ := p.group.Do("discovery", func() (any, error) {
		eps := p.fetchDiscovery(ctx)
		p.mu.Lock()
		p.eps = eps
		p.mu.Unlock()
		return eps, nil
	})
	return result.(*endpoints)
}

func (p *Auth0Provider) fetchDiscovery(ctx context.Context) *endpoints {
	fallback := &endpoints{
		Token:    p.baseURL + "/oauth/token",
		UserInfo: p.baseURL + "/userinfo",
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/.well-known/openid-configuration", nil)
	if err != nil {
		return fallback
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.LogDebugWithFields("idp", "OIDC discovery unavailable, using conventional endpoints", map[string]any{
			"error": err.Error(),
		})
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fallback
	}

	var doc struct {
		TokenEndpoint    string `json:"token_endpoint"`
		UserInfoEndpoint string `json:"userinfo_endpoint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fallback
	}
	if doc.TokenEndpoint == "" || doc.UserInfoEndpoint == "" {
		return fallback
	}

	return &endpoints{Token: doc.TokenEndpoint, UserInfo: doc.UserInfoEndpoint}
}

// PasswordGrant performs the resource-owner password grant.
//
// The request is issued directly rather than through oauth2.Config because
// the grant carries provider extensions (audience, realm) the generic flow
// does not expose. Failures still surface as *oauth2.RetrieveError so the
// caller maps OAuth error codes uniformly.
func (p *Auth0Provider) PasswordGrant(ctx context.Context, email, password, connection string) (*oauth2.Token, error) {
	eps := p.resolveEndpoints(ctx)

	form := url.Values{
		"grant_type":    {"password"},
		"username":      {email},
		"password":      {password},
		"scope":         {defaultScopes},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
	}
	if p.cfg.Audience != "" {
		form.Set("audience", p.cfg.Audience)
	}
	if connection != "" {
		form.Set("grant_type", grantTypePasswordRealm)
		form.Set("realm", connection)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, eps.Token, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newRetrieveError(resp, body)
	}

	return parseTokenResponse(body)
}

// newRetrieveError builds the oauth2 error type from a token endpoint
// rejection, extracting the standard error and error_description fields
func newRetrieveError(resp *http.Response, body []byte) *oauth2.RetrieveError {
	retrieveErr := &oauth2.RetrieveError{
		Response: resp,
		Body:     body,
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if contentType == "application/json" {
		var payload struct {
			ErrorCode        string `json:"error"`
			ErrorDescription string `json:"error_description"`
			ErrorURI         string `json:"error_uri"`
		}
		if json.Unmarshal(body, &payload) == nil {
			retrieveErr.ErrorCode = payload.ErrorCode
			retrieveErr.ErrorDescription = payload.ErrorDescription
			retrieveErr.ErrorURI = payload.ErrorURI
		}
	}
	return retrieveErr
}

func parseTokenResponse(body []byte) (*oauth2.Token, error) {
	var payload struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	token := &oauth2.Token{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		RefreshToken: payload.RefreshToken,
	}
	if payload.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}

	return token.WithExtra(map[string]any{
		"id_token":   payload.IDToken,
		"expires_in": payload.ExpiresIn,
	}), nil
}

// UserInfo fetches the profile for an issued token
func (p *Auth0Provider) UserInfo(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	eps := p.resolveEndpoints(ctx)

	// oauth2.Config.Client attaches the bearer token and reuses the
	// provider's transport behavior
	conf := &oauth2.Config{ClientID: p.cfg.ClientID}
	client := conf.Client(ctx, token)
	client.Timeout = p.client.Timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, eps.UserInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("userinfo returned status %d: %s", resp.StatusCode, body)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("parsing userinfo response: %w", err)
	}
	return &identity, nil
}

// Verify interface
var _ Provider = (*Auth0Provider)(nil)
