// Package settings implements the read-only configuration surface (C10):
// backend URL, upstream credentials, the root policy name, and connection
// sizing, all sourced from environment variables per spec §6.
package settings

import (
	"fmt"
	"os"
	"strconv"
)

// Settings is the read-only accessor surface the orchestrator and policies
// consult through the DependencyContainer. It is resolved once at startup;
// a missing required value is a configuration error raised by Load, not a
// per-request failure.
type Settings struct {
	backendURL     string
	openaiAPIKey   string
	topLevelPolicy string
	appHost        string
	appPort        int
	dbURL          string
	logLevel       string
	httpPoolSize   int
	dbPoolSize     int
}

func (s *Settings) BackendURL() string         { return s.backendURL }
func (s *Settings) OpenAIAPIKey() string       { return s.openaiAPIKey }
func (s *Settings) TopLevelPolicyName() string { return s.topLevelPolicy }
func (s *Settings) AppHost() string            { return s.appHost }
func (s *Settings) AppPort() int               { return s.appPort }
func (s *Settings) DBURL() string              { return s.dbURL }
func (s *Settings) LogLevel() string           { return s.logLevel }
func (s *Settings) HTTPPoolSize() int          { return s.httpPoolSize }
func (s *Settings) DBPoolSize() int            { return s.dbPoolSize }

// APIKeyFromEnv looks up a named environment variable at request time, for
// AddApiKeyHeaderFromEnv (C7). It does not fall back to OpenAIAPIKey — the
// policy decides what to do with an empty result.
func (s *Settings) APIKeyFromEnv(name string) string {
	return os.Getenv(name)
}

// Load reads the process environment and validates required values. Per
// spec §4.10 a missing required value is a startup-time configuration
// error, never deferred to request handling.
func Load() (*Settings, error) {
	s := &Settings{
		backendURL:     os.Getenv("BACKEND_URL"),
		openaiAPIKey:   os.Getenv("OPENAI_API_KEY"),
		topLevelPolicy: os.Getenv("TOP_LEVEL_POLICY_NAME"),
		appHost:        envOr("APP_HOST", "0.0.0.0"),
		dbURL:          os.Getenv("DATABASE_URL"),
		logLevel:       envOr("LOG_LEVEL", "info"),
	}

	if s.backendURL == "" {
		return nil, fmt.Errorf("settings: BACKEND_URL is required")
	}

	if s.topLevelPolicy == "" {
		return nil, fmt.Errorf("settings: TOP_LEVEL_POLICY_NAME is required")
	}

	port, err := strconv.Atoi(envOr("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("settings: APP_PORT must be an integer: %w", err)
	}

	s.appPort = port

	s.httpPoolSize, err = intEnvOr("HTTP_POOL_SIZE", 64)
	if err != nil {
		return nil, err
	}

	s.dbPoolSize, err = intEnvOr("DB_POOL_SIZE", 10)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func intEnvOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("settings: %s must be an integer: %w", key, err)
	}

	return n, nil
}
