package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// ValidateFile validates a config file structure without requiring env vars.
// Used by the -validate CLI mode so CI can lint configs outside the
// deployment environment.
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return result, nil
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: "version field is required. Hint: Add \"version\": \"v1\"",
		})
	} else if version != "v1" {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("unsupported version '%s' - use 'v1'", version),
		})
	}

	validateFrontStructure(rawConfig, result)

	return result, nil
}

func validateFrontStructure(rawConfig map[string]any, result *ValidationResult) {
	front, ok := rawConfig["front"].(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "front",
			Message: "front field is required and must be an object",
		})
		return
	}

	if addr, ok := front["addr"].(string); !ok || addr == "" {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "front.addr",
			Message: "addr is required (e.g., \":8080\")",
		})
	}

	if _, hasBackend := front["backendApiUrl"]; !hasBackend {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "front.backendApiUrl",
			Message: fmt.Sprintf("backendApiUrl not set - will default to %s", DefaultBackendAPIURL),
		})
	}

	checkBashStyleSyntax(front, "front", result)

	provider, hasProvider := front["provider"].(map[string]any)
	if hasProvider {
		validateProviderStructure(provider, result)
	}

	delegated, _ := front["delegateAuth"].(bool)
	if !hasProvider && !delegated {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "front.provider",
			Message: "no provider configured - authentication will be delegated to the backend",
		})
	}

	if admin, ok := front["admin"].(map[string]any); ok {
		if reason := envReferenceIssue(admin["password"]); reason != "" {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "front.admin.password",
				Message: reason,
			})
		}
	}
}

func validateProviderStructure(provider map[string]any, result *ValidationResult) {
	if domain, ok := provider["domain"].(string); !ok || domain == "" {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "front.provider.domain",
			Message: "domain is required when a provider is configured",
		})
	}

	if reason := envReferenceIssue(provider["clientSecret"]); reason != "" {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "front.provider.clientSecret",
			Message: reason,
		})
	}
}

// envReferenceIssue reports why a secret value is unacceptable, or "" if fine.
// Absent values are fine; literal strings are not.
func envReferenceIssue(value any) string {
	if value == nil {
		return ""
	}
	if _, isString := value.(string); isString {
		return "secrets must use {\"$env\": \"VAR_NAME\"} references, not literal values"
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return "secret reference must use the {\"$env\": \"VAR_NAME\"} format"
		}
	}
	return ""
}

// checkBashStyleSyntax warns about $VAR-looking strings that would never be
// resolved, a common mistake when migrating from shell-templated configs.
func checkBashStyleSyntax(section map[string]any, path string, result *ValidationResult) {
	for key, value := range section {
		fieldPath := path + "." + key
		switch v := value.(type) {
		case string:
			if strings.HasPrefix(v, "$") && !strings.HasPrefix(v, "$2") {
				result.Warnings = append(result.Warnings, ValidationError{
					Path:    fieldPath,
					Message: fmt.Sprintf("value %q looks like bash-style substitution - use {\"$env\": \"VAR_NAME\"} instead", v),
				})
			}
		case map[string]any:
			if _, isEnvRef := v["$env"]; !isEnvRef {
				checkBashStyleSyntax(v, fieldPath, result)
			}
		}
	}
}
