package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BACKEND_URL", "https://upstream.example")
	t.Setenv("TOP_LEVEL_POLICY_NAME", "root")
}

func TestLoad_RequiredAndDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_API_KEY", "sk-upstream-AAAA")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://upstream.example", s.BackendURL())
	assert.Equal(t, "root", s.TopLevelPolicyName())
	assert.Equal(t, "sk-upstream-AAAA", s.OpenAIAPIKey())
	assert.Equal(t, "0.0.0.0", s.AppHost())
	assert.Equal(t, 8080, s.AppPort())
	assert.Equal(t, "info", s.LogLevel())
	assert.Equal(t, 64, s.HTTPPoolSize())
	assert.Equal(t, 10, s.DBPoolSize())
}

func TestLoad_MissingBackendURLFailsAtStartup(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("TOP_LEVEL_POLICY_NAME", "root")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_URL")
}

func TestLoad_MissingPolicyNameFailsAtStartup(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://upstream.example")
	t.Setenv("TOP_LEVEL_POLICY_NAME", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadPortRejected(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}

func TestAPIKeyFromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("ALT_PROVIDER_API_KEY", "sk-alt-key")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-alt-key", s.APIKeyFromEnv("ALT_PROVIDER_API_KEY"))
	assert.Empty(t, s.APIKeyFromEnv("UNSET_PROVIDER_API_KEY"))
}
