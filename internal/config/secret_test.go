package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	t.Run("String redacts non-empty values", func(t *testing.T) {
		s := Secret("super-secret-token")
		assert.Equal(t, "***", s.String())
		assert.Equal(t, "***", fmt.Sprintf("%s", s))
		assert.Equal(t, "***", fmt.Sprintf("%v", s))
	})

	t.Run("String keeps empty values empty", func(t *testing.T) {
		assert.Equal(t, "", Secret("").String())
	})

	t.Run("MarshalJSON redacts", func(t *testing.T) {
		data, err := json.Marshal(struct {
			Token Secret `json:"token"`
		}{Token: "super-secret"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"token": "***"}`, string(data))
	})

	t.Run("raw value still accessible via conversion", func(t *testing.T) {
		s := Secret("super-secret")
		assert.Equal(t, "super-secret", string(s))
	})
}

func TestValidateFile(t *testing.T) {
	t.Run("valid config passes without env vars set", func(t *testing.T) {
		path := writeConfig(t, `{
			"version": "v1",
			"front": {
				"addr": ":8080",
				"backendApiUrl": {"$env": "BACKEND_API_URL"},
				"provider": {
					"domain": "auth.dottapps.com",
					"clientId": {"$env": "AUTH0_CLIENT_ID"},
					"clientSecret": {"$env": "AUTH0_CLIENT_SECRET"}
				}
			}
		}`)

		result, err := ValidateFile(path)
		require.NoError(t, err)
		assert.True(t, result.IsValid())
		assert.Empty(t, result.Warnings)
	})

	t.Run("bash-style substitution warning", func(t *testing.T) {
		path := writeConfig(t, `{
			"version": "v1",
			"front": {
				"addr": ":8080",
				"backendApiUrl": "$BACKEND_API_URL"
			}
		}`)

		result, err := ValidateFile(path)
		require.NoError(t, err)
		assert.True(t, result.IsValid())
		require.NotEmpty(t, result.Warnings)
		assert.Contains(t, result.Warnings[0].Message, "$env")
	})

	t.Run("literal secret is an error", func(t *testing.T) {
		path := writeConfig(t, `{
			"version": "v1",
			"front": {
				"addr": ":8080",
				"provider": {"domain": "auth.dottapps.com", "clientSecret": "oops"}
			}
		}`)

		result, err := ValidateFile(path)
		require.NoError(t, err)
		assert.False(t, result.IsValid())
	})

	t.Run("missing front section", func(t *testing.T) {
		path := writeConfig(t, `{"version": "v1"}`)

		result, err := ValidateFile(path)
		require.NoError(t, err)
		assert.False(t, result.IsValid())
	})
}
