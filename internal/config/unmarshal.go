package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// resolveConfigValue resolves a raw config value that is either a plain JSON
// string or an environment variable reference of the form {"$env": "VAR_NAME"}.
//
// The explicit {"$env": ...} syntax is used instead of bash-like $VAR
// substitution so config files are safe to handle in shell contexts and so a
// literal string containing $ is never mistaken for a reference.
func resolveConfigValue(raw json.RawMessage) (string, error) {
	if raw == nil {
		return "", nil
	}

	var literal string
	if err := json.Unmarshal(raw, &literal); err == nil {
		return literal, nil
	}

	var ref struct {
		Env string `json:"$env"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("value must be a string or {\"$env\": \"VAR_NAME\"} reference")
	}
	if ref.Env == "" {
		return "", fmt.Errorf("$env reference is missing the variable name")
	}

	value, ok := os.LookupEnv(ref.Env)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", ref.Env)
	}
	return value, nil
}

// UnmarshalJSON implements custom unmarshaling for ProviderConfig,
// resolving env references immediately
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider ProviderConfig
	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ProviderConfig(raw)

	clientID, err := resolveConfigValue(p.ClientIDRaw)
	if err != nil {
		return fmt.Errorf("parsing provider.clientId: %w", err)
	}
	p.ClientID = Secret(clientID)

	clientSecret, err := resolveConfigValue(p.ClientSecretRaw)
	if err != nil {
		return fmt.Errorf("parsing provider.clientSecret: %w", err)
	}
	p.ClientSecret = Secret(clientSecret)

	return nil
}

// UnmarshalJSON implements custom unmarshaling for AdminConfig
func (a *AdminConfig) UnmarshalJSON(data []byte) error {
	type rawAdmin AdminConfig
	var raw rawAdmin
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AdminConfig(raw)

	password, err := resolveConfigValue(a.PasswordRaw)
	if err != nil {
		return fmt.Errorf("parsing admin.password: %w", err)
	}
	a.HashedPassword = Secret(password)

	return nil
}

// UnmarshalJSON implements custom unmarshaling for FrontConfig, resolving the
// backend URL env reference and parsing timeout strings
func (f *FrontConfig) UnmarshalJSON(data []byte) error {
	type rawFront struct {
		Addr            string          `json:"addr"`
		AllowedOrigins  []string        `json:"allowedOrigins,omitempty"`
		BackendAPIURL   json.RawMessage `json:"backendApiUrl,omitempty"`
		DelegateAuth    bool            `json:"delegateAuth,omitempty"`
		Provider        *ProviderConfig `json:"provider,omitempty"`
		Admin           *AdminConfig    `json:"admin,omitempty"`
		ExchangeTimeout string          `json:"exchangeTimeout,omitempty"`
		ProxyTimeout    string          `json:"proxyTimeout,omitempty"`
	}

	var raw rawFront
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Addr = raw.Addr
	f.AllowedOrigins = raw.AllowedOrigins
	f.DelegateAuth = raw.DelegateAuth
	f.Provider = raw.Provider
	f.Admin = raw.Admin

	backendURL, err := resolveConfigValue(raw.BackendAPIURL)
	if err != nil {
		return fmt.Errorf("parsing backendApiUrl: %w", err)
	}
	f.BackendAPIURL = NormalizeBackendURL(backendURL)

	f.ExchangeTimeout = DefaultExchangeTimeout
	if raw.ExchangeTimeout != "" {
		d, err := time.ParseDuration(raw.ExchangeTimeout)
		if err != nil {
			return fmt.Errorf("parsing exchangeTimeout: %w", err)
		}
		f.ExchangeTimeout = d
	}

	f.ProxyTimeout = DefaultProxyTimeout
	if raw.ProxyTimeout != "" {
		d, err := time.ParseDuration(raw.ProxyTimeout)
		if err != nil {
			return fmt.Errorf("parsing proxyTimeout: %w", err)
		}
		f.ProxyTimeout = d
	}

	f.Mode = resolveAuthMode(f)
	return nil
}

// resolveAuthMode picks the auth mode once, at load time. Backend-delegated
// wins when provider credentials are absent or delegation is forced.
func resolveAuthMode(f *FrontConfig) AuthMode {
	if f.DelegateAuth || !f.Provider.Configured() {
		return AuthModeBackendDelegated
	}
	return AuthModeDirectProvider
}
