package config

import (
	"encoding/json"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// AuthMode identifies which authority checks credentials for this deployment.
// Resolved once at config load, never re-derived per request.
type AuthMode string

const (
	// AuthModeDirectProvider exchanges credentials directly against the
	// identity provider's token endpoint (password grant).
	AuthModeDirectProvider AuthMode = "direct-provider"

	// AuthModeBackendDelegated proxies credentials to the backend API's
	// password-login endpoint, which mints an opaque session id.
	AuthModeBackendDelegated AuthMode = "backend-delegated"
)

// DefaultBackendAPIURL is used when no backend URL is configured
const DefaultBackendAPIURL = "https://api.dottapps.com"

// Default upstream timeouts. The identity provider and backend own retry and
// rate-limit semantics; these only bound how long a single attempt may hang.
const (
	DefaultExchangeTimeout = 10 * time.Second
	DefaultProxyTimeout    = 15 * time.Second
)

// ProviderConfig holds identity provider client credentials
type ProviderConfig struct {
	// Domain is the provider's custom domain (e.g., auth.dottapps.com).
	Domain string `json:"domain"`

	// Audience is the API identifier requested with the password grant.
	Audience string `json:"audience,omitempty"`

	// Connection is the provider realm to authenticate against.
	Connection string `json:"connection,omitempty"`

	// Raw env-reference values, resolved during unmarshaling
	ClientIDRaw     json.RawMessage `json:"clientId,omitempty"`
	ClientSecretRaw json.RawMessage `json:"clientSecret,omitempty"`

	// Computed fields
	ClientID     Secret `json:"-"`
	ClientSecret Secret `json:"-"`
}

// Configured reports whether the provider has usable client credentials.
// Without them the deployment falls back to backend-delegated auth.
func (p *ProviderConfig) Configured() bool {
	return p != nil && p.ClientID != "" && p.ClientSecret != ""
}

// AdminConfig guards the runtime operations endpoints (log level changes)
type AdminConfig struct {
	Username string `json:"username"`

	// PasswordRaw is an env reference to a bcrypt hash, never a literal
	PasswordRaw json.RawMessage `json:"password"`

	// HashedPassword is the resolved bcrypt hash
	HashedPassword Secret `json:"-"`
}

// FrontConfig is the top-level service configuration
type FrontConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`

	// BackendAPIURL is normalized at load: scheme auto-prefixed with https://,
	// DefaultBackendAPIURL substituted when empty.
	BackendAPIURL string `json:"-"`

	// DelegateAuth forces backend-delegated auth even when provider
	// credentials are present.
	DelegateAuth bool `json:"delegateAuth,omitempty"`

	Provider *ProviderConfig `json:"provider,omitempty"`
	Admin    *AdminConfig    `json:"admin,omitempty"`

	// ExchangeTimeout bounds token and userinfo calls; ProxyTimeout bounds
	// proxied backend calls.
	ExchangeTimeout time.Duration `json:"-"`
	ProxyTimeout    time.Duration `json:"-"`

	// Mode is resolved once at load from provider credentials and DelegateAuth
	Mode AuthMode `json:"-"`
}

// Config is the complete parsed configuration
type Config struct {
	Version string      `json:"version"`
	Front   FrontConfig `json:"front"`
}
