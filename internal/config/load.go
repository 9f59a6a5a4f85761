package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if version != "v1" {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// Parse directly into typed Config struct.
	// The custom UnmarshalJSON methods resolve env vars immediately.
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates the config structure before environment resolution.
// Secrets must be env references, never literals checked into config files.
func validateRawConfig(rawConfig map[string]any) error {
	front, ok := rawConfig["front"].(map[string]any)
	if !ok {
		return fmt.Errorf("front section is required")
	}

	if provider, ok := front["provider"].(map[string]any); ok {
		if err := requireEnvReference(provider, "clientSecret", "front.provider"); err != nil {
			return err
		}
	}
	if admin, ok := front["admin"].(map[string]any); ok {
		if err := requireEnvReference(admin, "password", "front.admin"); err != nil {
			return err
		}
	}
	return nil
}

func requireEnvReference(section map[string]any, field, path string) error {
	value, exists := section[field]
	if !exists {
		return nil
	}
	if _, isString := value.(string); isString {
		return fmt.Errorf("%s.%s must use environment variable reference for security", path, field)
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("%s.%s must use {\"$env\": \"VAR_NAME\"} format", path, field)
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	front := &config.Front

	if front.Addr == "" {
		return fmt.Errorf("front.addr is required")
	}
	if front.BackendAPIURL == "" {
		return fmt.Errorf("front.backendApiUrl could not be resolved")
	}
	if _, err := url.Parse(front.BackendAPIURL); err != nil {
		return fmt.Errorf("front.backendApiUrl is not a valid URL: %w", err)
	}

	if front.Mode == AuthModeDirectProvider {
		if front.Provider.Domain == "" {
			return fmt.Errorf("front.provider.domain is required for direct provider auth")
		}
	}

	if admin := front.Admin; admin != nil {
		if admin.Username == "" {
			return fmt.Errorf("front.admin.username is required when admin is configured")
		}
		if admin.HashedPassword == "" {
			return fmt.Errorf("front.admin.password is required when admin is configured")
		}
		if !strings.HasPrefix(string(admin.HashedPassword), "$2") {
			return fmt.Errorf("front.admin.password must be a bcrypt hash, not a plaintext password")
		}
	}

	return nil
}

// NormalizeBackendURL applies the backend URL defaulting rules: substitute the
// fixed fallback host when unset, and auto-prefix https:// when no scheme is
// given.
func NormalizeBackendURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultBackendAPIURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}
